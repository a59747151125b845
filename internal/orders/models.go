package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCreditCard     PaymentMethod = "credit_card"
	MethodDebitCard      PaymentMethod = "debit_card"
	MethodUPI            PaymentMethod = "upi"
	MethodNetBanking     PaymentMethod = "net_banking"
	MethodWallet         PaymentMethod = "wallet"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodUPI, MethodNetBanking,
		MethodWallet, MethodCashOnDelivery:
		return true
	}
	return false
}

// Order is an immutable-content, mutable-status record. The pricing fields
// are frozen at creation and never recomputed.
type Order struct {
	ID            string
	UserID        string
	OrderNumber   string
	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	ShippingAddress string
	BillingAddress  string
	ShippingPhone   string
	ShippingEmail   string

	TrackingNumber    string
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time

	Lines []Line

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is the historical snapshot of a product at order-creation time,
// deliberately decoupled from the live catalog.
type Line struct {
	ID         string
	OrderID    string
	ProductID  string
	SKU        string
	Name       string
	Image      string
	UnitPrice  decimal.Decimal
	Quantity   int
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

// Summary is the list-view projection of an order.
type Summary struct {
	ID            string
	OrderNumber   string
	Status        Status
	PaymentStatus PaymentStatus
	TotalAmount   decimal.Decimal
	ItemCount     int
	CreatedAt     time.Time
}

// Filter narrows ListOrders; nil fields do not constrain. All set fields are
// combined conjunctively.
type Filter struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	MinTotal      *decimal.Decimal
	MaxTotal      *decimal.Decimal
}

// StatusPatch carries the optional fields of an admin status update; only
// present (non-nil) fields are applied.
type StatusPatch struct {
	Status            *Status
	PaymentStatus     *PaymentStatus
	TrackingNumber    *string
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
}

type Page struct {
	Orders []Summary
	Total  int
	Page   int
	Size   int
	Pages  int
}

type Stats struct {
	TotalOrders  int
	TotalSpent   decimal.Decimal
	RecentOrders int
}

type ShippingInfo struct {
	ShippingAddress string
	BillingAddress  string
	ShippingPhone   string
	ShippingEmail   string
}
