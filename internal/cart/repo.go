package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// GetOrCreate finds the owner's cart or creates an empty one. The
// insert-if-absent upsert against the partial unique indexes makes concurrent
// first access yield a single cart per owner.
func (r *Repo) GetOrCreate(ctx context.Context, owner OwnerKey) (*Cart, error) {
	if owner.UserID != "" {
		_, err := r.DB.Exec(ctx, `
			INSERT INTO carts(id, user_id) VALUES ($1, $2)
			ON CONFLICT (user_id) WHERE user_id IS NOT NULL DO NOTHING`,
			uuid.NewString(), owner.UserID)
		if err != nil {
			return nil, err
		}
		return r.load(ctx, `user_id = $1`, owner.UserID)
	}

	_, err := r.DB.Exec(ctx, `
		INSERT INTO carts(id, session_id) VALUES ($1, $2)
		ON CONFLICT (session_id) WHERE session_id IS NOT NULL DO NOTHING`,
		uuid.NewString(), owner.SessionID)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, `session_id = $1`, owner.SessionID)
}

func (r *Repo) load(ctx context.Context, where string, arg any) (*Cart, error) {
	var c Cart
	var userID, sessionID *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, session_id, created_at, updated_at
		FROM carts WHERE `+where, arg).
		Scan(&c.ID, &userID, &sessionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		c.UserID = *userID
	}
	if sessionID != nil {
		c.SessionID = *sessionID
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, cart_id, product_id, product_sku, product_name,
		       COALESCE(product_image, ''), unit_price, quantity, created_at, updated_at
		FROM cart_lines WHERE cart_id = $1 ORDER BY created_at, id`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.SKU, &l.Name,
			&l.Image, &l.UnitPrice, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, l)
	}
	return &c, rows.Err()
}

// UpsertLine inserts the snapshot or, when the product is already in the
// cart, atomically increments its quantity. The existing price snapshot
// stands; the new one is discarded.
func (r *Repo) UpsertLine(ctx context.Context, cartID string, line Line) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_lines(id, cart_id, product_id, product_sku, product_name,
		                       product_image, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity,
		              updated_at = now()`,
		line.ID, cartID, line.ProductID, line.SKU, line.Name, line.Image,
		line.UnitPrice, line.Quantity)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateLine overwrites a line's quantity; quantity <= 0 deletes the line.
func (r *Repo) UpdateLine(ctx context.Context, cartID, productID string, quantity int) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lineID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM cart_lines
		WHERE cart_id = $1 AND product_id = $2 FOR UPDATE`, cartID, productID).
		Scan(&lineID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCartItemNotFound
	}
	if err != nil {
		return err
	}

	if quantity <= 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE cart_lines SET quantity = $2, updated_at = now() WHERE id = $1`,
			lineID, quantity); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteLine removes the product's line if present; absent is not an error.
func (r *Repo) DeleteLine(ctx context.Context, cartID, productID string) error {
	ct, err := r.DB.Exec(ctx, `
		DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() > 0 {
		_, err = r.DB.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	}
	return err
}

func (r *Repo) ClearLines(ctx context.Context, cartID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
