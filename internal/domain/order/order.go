package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Transitions are forward-only:
// CREATED -> IN_KITCHEN -> CLOSED.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusInKitchen Status = "IN_KITCHEN"
	StatusClosed    Status = "CLOSED"
)

// Order is a guest order bound to a table and a waiter. TotalAmount always
// equals the sum of price*quantity over the current items; ClosedAt is
// non-nil exactly while Status is CLOSED.
type Order struct {
	ID              string
	TableID         int64
	WaiterID        int64
	Status          Status
	TotalAmount     decimal.Decimal
	SpecialRequests string
	CreatedAt       time.Time
	ClosedAt        *time.Time
	Version         int64
}

// Item is a line item owned by exactly one order. DishName and Price are a
// snapshot taken from the menu service when the item was added and never
// change afterwards.
type Item struct {
	ID             string
	OrderID        string
	DishID         int64
	DishName       string
	Price          decimal.Decimal
	Quantity       int
	SpecialRequest string
}

// Subtotal returns price multiplied by quantity.
func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}
