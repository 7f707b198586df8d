package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s string) bool {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether s is a known payment method.
func ValidPaymentMethod(s string) bool {
	switch PaymentMethod(s) {
	case PaymentMethodCash, PaymentMethodMobileMoney, PaymentMethodCard,
		PaymentMethodBankTransfer:
		return true
	}
	return false
}

// orderTransitions is the enforced lifecycle. delivered and cancelled are
// terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// paymentTransitions: a failed payment is retried by creating a new order,
// not by reopening this one.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    {},
	PaymentStatusFailed:  {},
}

// CanTransitionOrderStatus reports whether from -> to is a legal order
// status transition.
func CanTransitionOrderStatus(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPaymentStatus reports whether from -> to is a legal payment
// status transition.
func CanTransitionPaymentStatus(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProductSnapshot is the product as it was when the order was placed.
type ProductSnapshot struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Category     string  `json:"category"`
	RegularPrice float64 `json:"regular_price"`
}

// PromotionSnapshot is a denormalized copy of the promotion at order time,
// so historical orders keep showing the price that applied.
type PromotionSnapshot struct {
	ID            string          `json:"id"`
	Product       ProductSnapshot `json:"product"`
	PromoPrice    float64         `json:"promo_price"`
	PromoDiscount float64         `json:"promo_discount"`
}

// Value stores the snapshot as JSONB.
func (p PromotionSnapshot) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan restores the snapshot from JSONB.
func (p *PromotionSnapshot) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into PromotionSnapshot", src)
	}
}

// Customer is the purchaser's contact info. Email is optional.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Order is one customer purchase against a promotion. Orders are never
// deleted; only status, payment status and payment method change after
// creation, and every change stamps UpdatedAt.
type Order struct {
	ID            string            `json:"id"`
	PromotionID   string            `json:"promotion_id"`
	Promotion     PromotionSnapshot `json:"promotion"`
	Customer      Customer          `json:"customer"`
	Quantity      int               `json:"quantity"`
	TotalAmount   float64           `json:"total_amount"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	OrderStatus   OrderStatus       `json:"order_status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Validate checks the cross-field invariants the type system cannot express:
// required customer fields, positive quantity, and the total matching
// quantity x promo price.
func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("order id is required")
	}
	if o.Customer.Name == "" {
		return fmt.Errorf("customer name is required")
	}
	if o.Customer.Phone == "" {
		return fmt.Errorf("customer phone is required")
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", o.Quantity)
	}
	if !ValidPaymentMethod(string(o.PaymentMethod)) {
		return fmt.Errorf("unknown payment method %q", o.PaymentMethod)
	}
	if !ValidPaymentStatus(string(o.PaymentStatus)) {
		return fmt.Errorf("unknown payment status %q", o.PaymentStatus)
	}
	if !ValidOrderStatus(string(o.OrderStatus)) {
		return fmt.Errorf("unknown order status %q", o.OrderStatus)
	}

	expected := float64(o.Quantity) * o.Promotion.PromoPrice
	if math.Abs(o.TotalAmount-expected) > 0.01 {
		return fmt.Errorf("total amount %.2f does not match quantity x promo price %.2f",
			o.TotalAmount, expected)
	}

	return nil
}

// Clone returns a deep-enough copy for mutation staging. All nested values
// are plain data, so a shallow copy suffices.
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}

// OrderFilters narrows List results. Zero values mean "no constraint";
// set filters compose with AND semantics.
type OrderFilters struct {
	// Status, PaymentStatus, PaymentMethod match exactly.
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	// Search is a case-insensitive substring match against customer name,
	// customer phone or order id (any of them).
	Search string
	// StartDate/EndDate bound CreatedAt inclusively.
	StartDate *time.Time
	EndDate   *time.Time
}

// Empty reports whether no filter is set.
func (f OrderFilters) Empty() bool {
	return f.Status == "" && f.PaymentStatus == "" && f.PaymentMethod == "" &&
		f.Search == "" && f.StartDate == nil && f.EndDate == nil
}
