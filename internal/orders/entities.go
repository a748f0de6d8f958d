// Package orders implements the order lifecycle engine: transactional
// order creation with stock reservation, idempotency-key guarded
// confirmation, and time-windowed, stock-compensating cancellation.
package orders

import (
	"errors"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order statuses. CANCELED is terminal; CONFIRMED is cancelable only
// inside the cancel window.
const (
	StatusCreated   OrderStatus = "CREATED"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCanceled  OrderStatus = "CANCELED"
)

// ConfirmedCancelWindow is how long after creation a CONFIRMED order may
// still be canceled.
const ConfirmedCancelWindow = 10 * time.Minute

// IdempotencyExpiry is the lifetime of an idempotency record.
const IdempotencyExpiry = 24 * time.Hour

// Order is a customer order with its line items. TotalCents and the
// items are fixed at creation and never recomputed.
type Order struct {
	ID         int64       `json:"id" db:"id"`
	CustomerID int64       `json:"customer_id" db:"customer_id"`
	Status     OrderStatus `json:"status" db:"status"`
	TotalCents int64       `json:"total_cents" db:"total_cents"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	Items      []OrderItem `json:"items,omitempty"`
}

// OrderItem is one priced line of an order. UnitPriceCents is a snapshot
// of the product price at order time.
type OrderItem struct {
	ID             int64 `json:"id" db:"id"`
	OrderID        int64 `json:"order_id" db:"order_id"`
	ProductID      int64 `json:"product_id" db:"product_id"`
	Qty            int32 `json:"qty" db:"qty"`
	UnitPriceCents int64 `json:"unit_price_cents" db:"unit_price_cents"`
	SubtotalCents  int64 `json:"subtotal_cents" db:"subtotal_cents"`
}

// IdempotencyStatus is the state of an idempotency record.
type IdempotencyStatus string

// Idempotency record statuses.
const (
	IdempotencyProcessing IdempotencyStatus = "PROCESSING"
	IdempotencyCompleted  IdempotencyStatus = "COMPLETED"
	IdempotencyFailed     IdempotencyStatus = "FAILED"
)

// TargetTypeOrderConfirmation tags idempotency records written by the
// confirmation path.
const TargetTypeOrderConfirmation = "ORDER_CONFIRMATION"

// IdempotencyRecord is one row of the idempotency ledger, keyed by the
// caller-supplied key. ResponseBody is set only when COMPLETED.
type IdempotencyRecord struct {
	Key          string            `json:"key" db:"key"`
	TargetType   string            `json:"target_type" db:"target_type"`
	TargetID     int64             `json:"target_id" db:"target_id"`
	Status       IdempotencyStatus `json:"status" db:"status"`
	ResponseBody []byte            `json:"response_body,omitempty" db:"response_body"`
	ExpiresAt    time.Time         `json:"expires_at" db:"expires_at"`
}

// NewOrderItemInput is one requested line of a create-order call.
type NewOrderItemInput struct {
	ProductID int64
	Qty       int32
}

// ListOrdersQuery filters and paginates the order listing. All filters
// are conjunctive and applied before the cursor bound.
type ListOrdersQuery struct {
	Status OrderStatus
	From   *time.Time
	To     *time.Time
	Cursor int64
	Limit  int
}

// Domain errors. The HTTP layer branches on these tags, never on
// message text.
var (
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrUpstreamUnavailable    = errors.New("customer lookup unavailable")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderNotConfirmable    = errors.New("order cannot be confirmed")
	ErrConfirmationInProgress = errors.New("confirmation already in progress")
	ErrConfirmationFailed     = errors.New("confirmation previously failed for this key")
	ErrCancelWindowExpired    = errors.New("cannot cancel confirmed order after the cancel window")
	ErrEmptyOrder             = errors.New("order must have at least one item")
	ErrInvalidQuantity        = errors.New("item quantity must be positive")
)

// ProductNotFoundError reports which requested product is missing.
type ProductNotFoundError struct {
	ProductID int64
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InsufficientStockError reports which product cannot cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID int64
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}
