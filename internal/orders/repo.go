package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, order_number, status, payment_status,
	COALESCE(payment_method, ''), subtotal, tax_amount, shipping_amount,
	discount_amount, total_amount, shipping_address, billing_address,
	shipping_phone, shipping_email, COALESCE(tracking_number, ''),
	estimated_delivery, delivered_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.Subtotal, &o.TaxAmount, &o.ShippingAmount,
		&o.DiscountAmount, &o.TotalAmount, &o.ShippingAddress, &o.BillingAddress,
		&o.ShippingPhone, &o.ShippingEmail, &o.TrackingNumber,
		&o.EstimatedDelivery, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// CreateOrder persists the order and its lines in one transaction. A clash on
// the order number gets a fresh number and another attempt; partial writes
// are never visible.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = r.createOnce(ctx, o); err == nil {
			return nil
		}
		if !isUniqueViolation(err, "orders_order_number_key") {
			return err
		}
		o.OrderNumber = NewNumber()
	}
	return fmt.Errorf("create order: number conflict persisted: %w", err)
}

func (r *Repo) createOnce(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, order_number, status, payment_status,
		                   payment_method, subtotal, tax_amount, shipping_amount,
		                   discount_amount, total_amount, shipping_address,
		                   billing_address, shipping_phone, shipping_email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.OrderNumber, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount,
		o.ShippingAddress, o.BillingAddress, o.ShippingPhone, o.ShippingEmail).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_lines(id, order_id, product_id, product_sku,
			                        product_name, product_image, unit_price,
			                        quantity, total_price)
			VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9)
			RETURNING created_at`,
			l.ID, l.OrderID, l.ProductID, l.SKU, l.Name, l.Image,
			l.UnitPrice, l.Quantity, l.TotalPrice).Scan(&l.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) loadLines(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID string) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_sku, product_name,
		       COALESCE(product_image, ''), unit_price, quantity, total_price, created_at
		FROM order_lines WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.SKU, &l.Name,
			&l.Image, &l.UnitPrice, &l.Quantity, &l.TotalPrice, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetOrder fetches one order with its lines. A non-empty userID scopes the
// lookup to that owner, so one user cannot read another's order.
func (r *Repo) GetOrder(ctx context.Context, orderID, userID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	args := []any{orderID}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if o.Lines, err = r.loadLines(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns list-view summaries newest first, plus the unpaginated
// match count.
func (r *Repo) ListOrders(ctx context.Context, userID string, f Filter, skip, limit int) ([]Summary, int, error) {
	where := `WHERE o.user_id = $1`
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.Status != nil {
		add("o.status = $%d", *f.Status)
	}
	if f.PaymentStatus != nil {
		add("o.payment_status = $%d", *f.PaymentStatus)
	}
	if f.CreatedFrom != nil {
		add("o.created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("o.created_at <= $%d", *f.CreatedTo)
	}
	if f.MinTotal != nil {
		add("o.total_amount >= $%d", *f.MinTotal)
	}
	if f.MaxTotal != nil {
		add("o.total_amount <= $%d", *f.MaxTotal)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders o `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT o.id, o.order_number, o.status, o.payment_status, o.total_amount,
		       (SELECT COUNT(*) FROM order_lines l WHERE l.order_id = o.id),
		       o.created_at
		FROM orders o %s
		ORDER BY o.created_at DESC
		OFFSET $%d LIMIT $%d`, where, len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.OrderNumber, &s.Status, &s.PaymentStatus,
			&s.TotalAmount, &s.ItemCount, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// UpdateOrder runs mutate against the row under a FOR UPDATE lock and writes
// back the mutable fields. mutate returning an error rolls everything back,
// so concurrent status changes serialize instead of losing updates.
func (r *Repo) UpdateOrder(ctx context.Context, orderID, userID string, mutate func(*Order) error) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	args := []any{orderID}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	o, err := scanOrder(tx.QueryRow(ctx, query+` FOR UPDATE`, args...))
	if err != nil {
		return nil, err
	}
	if o.Lines, err = r.loadLines(ctx, tx, o.ID); err != nil {
		return nil, err
	}

	if err := mutate(o); err != nil {
		return nil, err
	}

	o.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, tracking_number = NULLIF($4, ''),
		    estimated_delivery = $5, delivered_at = $6, updated_at = $7
		WHERE id = $1`,
		o.ID, o.Status, o.PaymentStatus, o.TrackingNumber,
		o.EstimatedDelivery, o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Statistics aggregates a user's order history. Total spent counts paid
// orders only; recent counts orders created in the last 30 days.
func (r *Repo) Statistics(ctx context.Context, userID string) (Stats, error) {
	var s Stats
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount) FILTER (WHERE payment_status = $2), 0),
		       COUNT(*) FILTER (WHERE created_at >= now() - interval '30 days')
		FROM orders WHERE user_id = $1`,
		userID, PaymentPaid).Scan(&s.TotalOrders, &s.TotalSpent, &s.RecentOrders)
	return s, err
}
