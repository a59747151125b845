package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUserValidation    = errors.New("user validation failed")
	ErrPaymentProcessing = errors.New("payment processing failed")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError names the product that could not be fulfilled.
// errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
