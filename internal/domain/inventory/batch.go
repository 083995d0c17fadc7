// Package inventory implements First-Expire-First-Out reservation of
// ingredient stock against expiry-dated batches.
package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a discrete received lot of an ingredient. Reserved tracks the
// committed-but-not-consumed share of Quantity; 0 <= Reserved <= Quantity
// always holds. A batch is eligible for allocation only while its expiry
// date is strictly in the future.
type Batch struct {
	ID           string
	IngredientID int64
	Quantity     decimal.Decimal
	Reserved     decimal.Decimal
	ExpiryDate   time.Time
	ReceivedDate time.Time
	PricePerUnit decimal.Decimal
}

// Available returns the quantity still open for reservation.
func (b *Batch) Available() decimal.Decimal {
	return b.Quantity.Sub(b.Reserved)
}

// Requirement is a demanded quantity of one ingredient.
type Requirement struct {
	IngredientID int64
	Quantity     decimal.Decimal
}

// InsufficientStockError reports that eligible batches cannot cover a
// requirement. No batch has been mutated when it is returned.
type InsufficientStockError struct {
	IngredientID int64
	Required     decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %d: required %s, available %s",
		e.IngredientID, e.Required, e.Available)
}
