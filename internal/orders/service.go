package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ordercart/internal/cart"
	"ordercart/internal/clients"
	"ordercart/internal/kafka"
	"ordercart/internal/metrics"
	"ordercart/internal/pricing"
)

// Notification kinds sent to the notification service.
const (
	NotifyOrderConfirmation   = "order_confirmation"
	NotifyStatusUpdate        = "status_update"
	NotifyPaymentConfirmation = "payment_confirmation"
	NotifyOrderCancellation   = "order_cancellation"
)

// Store is what the service needs from persistence; *Repo implements it.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID, userID string) (*Order, error)
	ListOrders(ctx context.Context, userID string, f Filter, skip, limit int) ([]Summary, int, error)
	UpdateOrder(ctx context.Context, orderID, userID string, mutate func(*Order) error) (*Order, error)
	Statistics(ctx context.Context, userID string) (Stats, error)
}

type ProductDirectory interface {
	Resolve(ctx context.Context, productID string) (clients.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) error
}

type AuthValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// Notifier queues a fire-and-forget notification; delivery failures never
// reach the caller.
type Notifier interface {
	Send(userID, orderID, kind string)
}

type PaymentGateway interface {
	Charge(ctx context.Context, orderID, method string, amount decimal.Decimal, details map[string]any) (clients.ChargeResult, error)
}

type EventPublisher interface {
	Publish(topic string, key, value []byte)
}

// PaymentClaims holds an exclusive per-order marker while a charge is in
// flight, so concurrent payment requests cannot both reach the gateway.
type PaymentClaims interface {
	Claim(ctx context.Context, orderID string) (bool, error)
	Record(ctx context.Context, orderID, transactionID string)
	Release(ctx context.Context, orderID string)
}

// CartSource is the slice of the cart service checkout needs.
type CartSource interface {
	Get(ctx context.Context, owner cart.OwnerKey) (*cart.Cart, error)
	Clear(ctx context.Context, owner cart.OwnerKey) (*cart.Cart, error)
}

type Service struct {
	store     Store
	directory ProductDirectory
	auth      AuthValidator
	notifier  Notifier
	gateway   PaymentGateway
	publisher EventPublisher
	carts     CartSource
	claims    PaymentClaims
	metrics   *metrics.Metrics
	name      string

	sideEffectTimeout time.Duration
}

func NewService(store Store, directory ProductDirectory, auth AuthValidator,
	notifier Notifier, gateway PaymentGateway, publisher EventPublisher,
	carts CartSource, claims PaymentClaims, m *metrics.Metrics, serviceName string) *Service {
	return &Service{
		store:             store,
		directory:         directory,
		auth:              auth,
		notifier:          notifier,
		gateway:           gateway,
		publisher:         publisher,
		carts:             carts,
		claims:            claims,
		metrics:           m,
		name:              serviceName,
		sideEffectTimeout: 10 * time.Second,
	}
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	UserID        string
	Token         string
	Items         []ItemInput
	Shipping      ShippingInfo
	PaymentMethod PaymentMethod
}

func (in CreateOrderInput) validate() error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	case len(in.Items) == 0:
		return fmt.Errorf("%w: order must have at least one item", ErrInvalidRequest)
	case !in.PaymentMethod.Valid():
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, in.PaymentMethod)
	case in.Shipping.ShippingAddress == "" || in.Shipping.BillingAddress == "":
		return fmt.Errorf("%w: shipping and billing address are required", ErrInvalidRequest)
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive for product %s", ErrInvalidRequest, it.ProductID)
		}
	}
	return nil
}

// CreateOrder validates the caller, snapshots and stock-checks every line,
// prices the order, and persists it atomically. Stock decrements and the
// confirmation notification run after commit and are best-effort.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, in.UserID, in.Token); err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(in.Items))
	for _, it := range in.Items {
		p, err := s.directory.Resolve(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < it.Quantity {
			return nil, &InsufficientStockError{
				ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock,
			}
		}
		lines = append(lines, Line{
			ID:         uuid.NewString(),
			ProductID:  it.ProductID,
			SKU:        p.SKU,
			Name:       p.Name,
			Image:      p.Image,
			UnitPrice:  p.Price,
			Quantity:   it.Quantity,
			TotalPrice: p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}

	return s.persistOrder(ctx, in.UserID, lines, in.Shipping, in.PaymentMethod)
}

type CheckoutInput struct {
	UserID        string
	Token         string
	Shipping      ShippingInfo
	PaymentMethod PaymentMethod
}

// CheckoutFromCart converts the user's cart into an order. Stock is
// re-validated, but the frozen cart-line prices are authoritative; the
// directory's current price is ignored. The cart is cleared only after the
// order exists; any failure leaves it intact.
func (s *Service) CheckoutFromCart(ctx context.Context, in CheckoutInput) (*Order, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, in.PaymentMethod)
	}
	if err := s.authorize(ctx, in.UserID, in.Token); err != nil {
		return nil, err
	}

	owner := cart.OwnerKey{UserID: in.UserID}
	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(c.Lines) == 0 {
		return nil, ErrCartEmpty
	}

	lines := make([]Line, 0, len(c.Lines))
	for _, cl := range c.Lines {
		p, err := s.directory.Resolve(ctx, cl.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < cl.Quantity {
			return nil, &InsufficientStockError{
				ProductID: cl.ProductID, Requested: cl.Quantity, Available: p.Stock,
			}
		}
		lines = append(lines, Line{
			ID:         uuid.NewString(),
			ProductID:  cl.ProductID,
			SKU:        cl.SKU,
			Name:       cl.Name,
			Image:      cl.Image,
			UnitPrice:  cl.UnitPrice,
			Quantity:   cl.Quantity,
			TotalPrice: cl.UnitPrice.Mul(decimal.NewFromInt(int64(cl.Quantity))),
		})
	}

	o, err := s.persistOrder(ctx, in.UserID, lines, in.Shipping, in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	if _, err := s.carts.Clear(ctx, owner); err != nil {
		// the order is durable; a stale cart is the lesser problem
		logrus.WithField("order_id", o.ID).WithError(err).Warn("cart clear after checkout failed")
		s.metrics.SideEffectFailure("cart_clear")
	}
	return o, nil
}

func (s *Service) authorize(ctx context.Context, userID, token string) error {
	id, err := s.auth.Validate(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserValidation, err)
	}
	if id != userID {
		return fmt.Errorf("%w: token does not belong to user", ErrUserValidation)
	}
	return nil
}

func (s *Service) persistOrder(ctx context.Context, userID string, lines []Line,
	shipping ShippingInfo, method PaymentMethod) (*Order, error) {

	pl := make([]pricing.Line, len(lines))
	for i, l := range lines {
		pl[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	totals := pricing.Calculate(pl)

	o := &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		OrderNumber:     NewNumber(),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   method,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.TaxAmount,
		ShippingAmount:  totals.ShippingAmount,
		DiscountAmount:  totals.DiscountAmount,
		TotalAmount:     totals.TotalAmount,
		ShippingAddress: shipping.ShippingAddress,
		BillingAddress:  shipping.BillingAddress,
		ShippingPhone:   shipping.ShippingPhone,
		ShippingEmail:   shipping.ShippingEmail,
		Lines:           lines,
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.metrics.OrderCreated()
	s.afterCreate(o)
	return o, nil
}

// afterCreate runs the post-commit side effects of order creation. The order
// is already durable, so failures here are logged and counted, never
// propagated, and they use a fresh context so a cancelled request cannot
// abort them.
func (s *Service) afterCreate(o *Order) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sideEffectTimeout)
	defer cancel()

	for _, l := range o.Lines {
		if err := s.directory.AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
			logrus.WithFields(logrus.Fields{
				"order_id": o.ID, "product_id": l.ProductID,
			}).WithError(err).Warn("stock decrement failed")
			s.metrics.SideEffectFailure("stock_decrement")
		}
	}
	s.notifier.Send(o.UserID, o.ID, NotifyOrderConfirmation)

	items := make([]LineQty, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = LineQty{ProductID: l.ProductID, Qty: l.Quantity}
	}
	s.publish(o.ID, TopicOrderCreated, EventOrderCreated, OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount.String(),
	})
}

func (s *Service) publish(orderID, topic, eventType string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.name,
		CorrelationID: orderID,
		Payload:       kafka.MustMarshal(payload),
	}
	s.publisher.Publish(topic, PartitionKey(orderID), kafka.MustMarshal(ev))
}

// GetOrder scopes to userID when non-empty so callers cannot read orders
// they do not own.
func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (*Order, error) {
	return s.store.GetOrder(ctx, orderID, userID)
}

// ListOrders pages a user's orders newest first.
func (s *Service) ListOrders(ctx context.Context, userID string, f Filter, skip, limit int) (Page, error) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	summaries, total, err := s.store.ListOrders(ctx, userID, f, skip, limit)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Orders: summaries,
		Total:  total,
		Page:   skip/limit + 1,
		Size:   limit,
		Pages:  (total + limit - 1) / limit,
	}, nil
}

// UpdateStatus applies the present fields of the patch. Status changes must
// follow the transition table; setting the current status again is a no-op,
// not an error.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, patch StatusPatch) (*Order, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *patch.Status)
	}
	if patch.PaymentStatus != nil && !patch.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidRequest, *patch.PaymentStatus)
	}

	o, err := s.store.UpdateOrder(ctx, orderID, "", func(o *Order) error {
		if patch.Status != nil && *patch.Status != o.Status {
			if !CanTransition(o.Status, *patch.Status) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, *patch.Status)
			}
			o.Status = *patch.Status
		}
		if patch.PaymentStatus != nil {
			o.PaymentStatus = *patch.PaymentStatus
		}
		if patch.TrackingNumber != nil {
			o.TrackingNumber = *patch.TrackingNumber
		}
		if patch.EstimatedDelivery != nil {
			o.EstimatedDelivery = patch.EstimatedDelivery
		}
		if patch.DeliveredAt != nil {
			o.DeliveredAt = patch.DeliveredAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Send(o.UserID, o.ID, NotifyStatusUpdate)
	s.publish(o.ID, TopicOrderStatus, EventStatusUpdated, StatusUpdatedPayload{
		OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus,
	})
	return o, nil
}

// CancelOrder rejects orders already shipped, delivered, or in a terminal
// state. After commit it restores stock for every line and notifies the user,
// both best-effort.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (*Order, error) {
	o, err := s.store.UpdateOrder(ctx, orderID, userID, func(o *Order) error {
		switch o.Status {
		case StatusShipped, StatusDelivered:
			return fmt.Errorf("%w: cannot cancel order already %s", ErrInvalidTransition, o.Status)
		case StatusCancelled:
			return fmt.Errorf("%w: order is already cancelled", ErrInvalidTransition)
		case StatusRefunded:
			return fmt.Errorf("%w: order is refunded", ErrInvalidTransition)
		}
		o.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderCancelled()

	ctx2, cancel := context.WithTimeout(context.Background(), s.sideEffectTimeout)
	defer cancel()
	items := make([]LineQty, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = LineQty{ProductID: l.ProductID, Qty: l.Quantity}
		if err := s.directory.AdjustStock(ctx2, l.ProductID, l.Quantity); err != nil {
			logrus.WithFields(logrus.Fields{
				"order_id": o.ID, "product_id": l.ProductID,
			}).WithError(err).Warn("stock restore failed")
			s.metrics.SideEffectFailure("stock_restore")
		}
	}
	s.notifier.Send(o.UserID, o.ID, NotifyOrderCancellation)
	s.publish(o.ID, TopicOrderCancelled, EventOrderCancelled, OrderCancelledPayload{
		OrderID: o.ID, UserID: o.UserID, Items: items,
	})
	return o, nil
}

type PaymentResult struct {
	Success       bool
	TransactionID string
	Message       string
	PaymentStatus PaymentStatus
}

// ProcessPayment charges the order. An already-paid order returns success
// without touching the gateway. The claim taken before the charge serializes
// concurrent requests for the same order; losing the claim race reports the
// in-flight payment instead of charging twice. A declined charge is a normal
// failed result; only gateway/transport trouble becomes ErrPaymentProcessing,
// leaving the payment status untouched.
func (s *Service) ProcessPayment(ctx context.Context, orderID string, method PaymentMethod, details map[string]any) (PaymentResult, error) {
	o, err := s.store.GetOrder(ctx, orderID, "")
	if err != nil {
		return PaymentResult{}, err
	}
	if o.PaymentStatus == PaymentPaid {
		return PaymentResult{
			Success:       true,
			Message:       "payment already processed",
			PaymentStatus: PaymentPaid,
		}, nil
	}

	claimed, err := s.claims.Claim(ctx, orderID)
	if err != nil {
		s.metrics.Payment("error")
		return PaymentResult{}, fmt.Errorf("%w: %v", ErrPaymentProcessing, err)
	}
	if !claimed {
		// another request holds the claim, or a past success left its marker
		if o, err := s.store.GetOrder(ctx, orderID, ""); err == nil && o.PaymentStatus == PaymentPaid {
			return PaymentResult{
				Success:       true,
				Message:       "payment already processed",
				PaymentStatus: PaymentPaid,
			}, nil
		}
		return PaymentResult{
			Success:       false,
			Message:       "payment already in progress",
			PaymentStatus: o.PaymentStatus,
		}, nil
	}

	res, err := s.gateway.Charge(ctx, o.ID, string(method), o.TotalAmount, details)
	if err != nil {
		s.claims.Release(ctx, orderID)
		s.metrics.Payment("error")
		return PaymentResult{}, fmt.Errorf("%w: %v", ErrPaymentProcessing, err)
	}

	if !res.Success {
		s.claims.Release(ctx, orderID)
		if _, err := s.store.UpdateOrder(ctx, orderID, "", func(o *Order) error {
			o.PaymentStatus = PaymentFailed
			return nil
		}); err != nil {
			return PaymentResult{}, err
		}
		s.metrics.Payment("declined")
		msg := res.Reason
		if msg == "" {
			msg = "payment failed"
		}
		return PaymentResult{Success: false, Message: msg, PaymentStatus: PaymentFailed}, nil
	}

	o, err = s.store.UpdateOrder(ctx, orderID, "", func(o *Order) error {
		o.PaymentStatus = PaymentPaid
		// payment capture confirms the order directly, bypassing the
		// transition table; this is the one sanctioned override
		o.Status = StatusConfirmed
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}
	s.metrics.Payment("paid")

	txnID := res.TransactionID
	if txnID == "" {
		txnID = "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	}
	s.claims.Record(ctx, orderID, txnID)
	s.notifier.Send(o.UserID, o.ID, NotifyPaymentConfirmation)
	s.publish(o.ID, TopicPaymentCaptured, EventPaymentCaptured, PaymentCapturedPayload{
		OrderID: o.ID, TransactionID: txnID, Amount: o.TotalAmount.String(),
	})
	return PaymentResult{
		Success:       true,
		TransactionID: txnID,
		Message:       "payment processed successfully",
		PaymentStatus: PaymentPaid,
	}, nil
}

// Statistics is a pure read over the user's order history.
func (s *Service) Statistics(ctx context.Context, userID string) (Stats, error) {
	return s.store.Statistics(ctx, userID)
}
