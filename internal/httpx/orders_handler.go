package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ordercart/internal/orders"
	"ordercart/internal/redisx"
)

type OrdersHandler struct {
	Orders *orders.Service
	Auth   TokenValidator
	Redis  *redis.Client
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireUser(h.Auth))
		r.Post("/checkout", h.checkout)
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/statistics", h.statistics)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Get("/orders/{orderID}/status", h.getStatus)
		r.Patch("/orders/{orderID}", h.updateStatus)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)
		r.Post("/orders/{orderID}/payment", h.processPayment)
	})
}

type shippingReq struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
	ShippingPhone   string `json:"shipping_phone"`
	ShippingEmail   string `json:"shipping_email"`
}

func (s shippingReq) info() orders.ShippingInfo {
	return orders.ShippingInfo{
		ShippingAddress: s.ShippingAddress,
		BillingAddress:  s.BillingAddress,
		ShippingPhone:   s.ShippingPhone,
		ShippingEmail:   s.ShippingEmail,
	}
}

type orderLineResp struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	ProductSKU string          `json:"product_sku"`
	Name       string          `json:"product_name"`
	Image      string          `json:"product_image,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type orderResp struct {
	ID                string               `json:"id"`
	UserID            string               `json:"user_id"`
	OrderNumber       string               `json:"order_number"`
	Status            orders.Status        `json:"status"`
	PaymentStatus     orders.PaymentStatus `json:"payment_status"`
	PaymentMethod     orders.PaymentMethod `json:"payment_method"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	TaxAmount         decimal.Decimal      `json:"tax_amount"`
	ShippingAmount    decimal.Decimal      `json:"shipping_amount"`
	DiscountAmount    decimal.Decimal      `json:"discount_amount"`
	TotalAmount       decimal.Decimal      `json:"total_amount"`
	ShippingAddress   string               `json:"shipping_address"`
	BillingAddress    string               `json:"billing_address"`
	ShippingPhone     string               `json:"shipping_phone"`
	ShippingEmail     string               `json:"shipping_email"`
	TrackingNumber    string               `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	Items             []orderLineResp      `json:"items"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func toOrderResp(o *orders.Order) orderResp {
	out := orderResp{
		ID:                o.ID,
		UserID:            o.UserID,
		OrderNumber:       o.OrderNumber,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		PaymentMethod:     o.PaymentMethod,
		Subtotal:          o.Subtotal,
		TaxAmount:         o.TaxAmount,
		ShippingAmount:    o.ShippingAmount,
		DiscountAmount:    o.DiscountAmount,
		TotalAmount:       o.TotalAmount,
		ShippingAddress:   o.ShippingAddress,
		BillingAddress:    o.BillingAddress,
		ShippingPhone:     o.ShippingPhone,
		ShippingEmail:     o.ShippingEmail,
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		DeliveredAt:       o.DeliveredAt,
		Items:             make([]orderLineResp, 0, len(o.Lines)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, l := range o.Lines {
		out.Items = append(out.Items, orderLineResp{
			ID:         l.ID,
			ProductID:  l.ProductID,
			ProductSKU: l.SKU,
			Name:       l.Name,
			Image:      l.Image,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			TotalPrice: l.TotalPrice,
		})
	}
	return out
}

// cacheStatus refreshes the hot status lookup; best-effort. The key carries
// the owner's id so a cached entry can only ever be served back to the owner.
func (h *OrdersHandler) cacheStatus(r *http.Request, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.UserID, o.ID)
	body, _ := json.Marshal(map[string]string{
		"status":         string(o.Status),
		"payment_status": string(o.PaymentStatus),
	})
	_ = h.Redis.Set(r.Context(), key, body, redisx.TTLStatusCache).Err()
}

type createOrderReq struct {
	shippingReq
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	PaymentMethod string `json:"payment_method"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	in := orders.CreateOrderInput{
		UserID:        userID(r),
		Token:         token(r),
		Shipping:      req.info(),
		PaymentMethod: orders.PaymentMethod(req.PaymentMethod),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, orders.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

type checkoutReq struct {
	shippingReq
	PaymentMethod string `json:"payment_method"`
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Orders.CheckoutFromCart(r.Context(), orders.CheckoutInput{
		UserID:        userID(r),
		Token:         token(r),
		Shipping:      req.info(),
		PaymentMethod: orders.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// getStatus serves the hot status poll from redis when possible, falling back
// to the store.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	key := fmt.Sprintf(redisx.KeyOrderStatus, userID(r), orderID)
	if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Orders.GetOrder(r.Context(), orderID, userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         string(o.Status),
		"payment_status": string(o.PaymentStatus),
	})
}

func parseFilter(r *http.Request) (orders.Filter, error) {
	var f orders.Filter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		s := orders.Status(v)
		if !s.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", orders.ErrInvalidRequest, v)
		}
		f.Status = &s
	}
	if v := q.Get("payment_status"); v != "" {
		p := orders.PaymentStatus(v)
		if !p.Valid() {
			return f, fmt.Errorf("%w: unknown payment status %q", orders.ErrInvalidRequest, v)
		}
		f.PaymentStatus = &p
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: bad start_date", orders.ErrInvalidRequest)
		}
		f.CreatedFrom = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: bad end_date", orders.ErrInvalidRequest)
		}
		f.CreatedTo = &t
	}
	if v := q.Get("min_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, fmt.Errorf("%w: bad min_amount", orders.ErrInvalidRequest)
		}
		f.MinTotal = &d
	}
	if v := q.Get("max_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, fmt.Errorf("%w: bad max_amount", orders.ErrInvalidRequest)
		}
		f.MaxTotal = &d
	}
	return f, nil
}

type summaryResp struct {
	ID            string               `json:"id"`
	OrderNumber   string               `json:"order_number"`
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	ItemCount     int                  `json:"item_count"`
	CreatedAt     time.Time            `json:"created_at"`
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.Orders.ListOrders(r.Context(), userID(r), f, skip, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]summaryResp, 0, len(page.Orders))
	for _, s := range page.Orders {
		out = append(out, summaryResp{
			ID:            s.ID,
			OrderNumber:   s.OrderNumber,
			Status:        s.Status,
			PaymentStatus: s.PaymentStatus,
			TotalAmount:   s.TotalAmount,
			ItemCount:     s.ItemCount,
			CreatedAt:     s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": out,
		"total":  page.Total,
		"page":   page.Page,
		"size":   page.Size,
		"pages":  page.Pages,
	})
}

type updateStatusReq struct {
	Status            *string    `json:"status"`
	PaymentStatus     *string    `json:"payment_status"`
	TrackingNumber    *string    `json:"tracking_number"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	DeliveredAt       *time.Time `json:"delivered_at"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	patch := orders.StatusPatch{
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
		DeliveredAt:       req.DeliveredAt,
	}
	if req.Status != nil {
		s := orders.Status(*req.Status)
		patch.Status = &s
	}
	if req.PaymentStatus != nil {
		p := orders.PaymentStatus(*req.PaymentStatus)
		patch.PaymentStatus = &p
	}

	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

type paymentReq struct {
	PaymentMethod  string         `json:"payment_method"`
	PaymentDetails map[string]any `json:"payment_details"`
}

func (h *OrdersHandler) processPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	res, err := h.Orders.ProcessPayment(r.Context(), chi.URLParam(r, "orderID"),
		orders.PaymentMethod(req.PaymentMethod), req.PaymentDetails)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        res.Success,
		"transaction_id": res.TransactionID,
		"message":        res.Message,
		"payment_status": res.PaymentStatus,
	})
}

func (h *OrdersHandler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Orders.Statistics(r.Context(), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_orders":  stats.TotalOrders,
		"total_spent":   stats.TotalSpent,
		"recent_orders": stats.RecentOrders,
	})
}
