package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store provides access to inventory batches. ExecTx runs fn as one atomic
// unit; fn's mutations commit together or not at all, and every batch
// fetched through the Tx stays exclusively locked until the unit ends.
type Store interface {
	ExecTx(ctx context.Context, fn func(tx Tx) error) error

	// ExpiringSoon lists batches with expiry date at or before the given
	// date and positive available quantity. Read-only, no locking.
	ExpiringSoon(ctx context.Context, date time.Time) ([]Batch, error)
}

// Tx is the transaction-scoped view of the store. Both listing methods lock
// the returned rows exclusively and order them by (expiry date, batch id),
// which combined with ingredient-ordered iteration in the allocator yields a
// fixed global lock-acquisition order.
type Tx interface {
	// EligibleBatches returns batches of the ingredient with expiry date
	// strictly after now and positive available quantity.
	EligibleBatches(ctx context.Context, ingredientID int64, now time.Time) ([]Batch, error)

	// ReservedBatches returns batches of the ingredient with a positive
	// reserved quantity, expired ones included.
	ReservedBatches(ctx context.Context, ingredientID int64) ([]Batch, error)

	// UpdateQuantities persists new total and reserved quantities for one
	// batch.
	UpdateQuantities(ctx context.Context, batchID string, quantity, reserved decimal.Decimal) error
}
