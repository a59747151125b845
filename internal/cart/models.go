package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOwner     = errors.New("either user id or session id is required")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrCartItemNotFound = errors.New("item not found in cart")
)

// OwnerKey locates a cart: an authenticated user id or an anonymous session
// id. When both are set the user id wins.
type OwnerKey struct {
	UserID    string
	SessionID string
}

func (k OwnerKey) Validate() error {
	if k.UserID == "" && k.SessionID == "" {
		return ErrInvalidOwner
	}
	return nil
}

type Cart struct {
	ID        string
	UserID    string
	SessionID string
	Lines     []Line
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal is the running sum of the cart, computed from the frozen
// per-line price snapshots.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Line carries a snapshot of the product taken when it entered the cart.
// The snapshot is intentionally not refreshed on later price changes.
type Line struct {
	ID        string
	CartID    string
	ProductID string
	SKU       string
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
