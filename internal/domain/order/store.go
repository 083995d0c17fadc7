package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/tablevine/backoffice/internal/domain/table"
)

// Sentinel errors for order persistence lookups.
var (
	ErrNotFound     = errors.New("order not found")
	ErrItemNotFound = errors.New("order item not found")
)

// Store provides access to orders, their items and the owning tables. ExecTx
// runs fn inside one atomic unit: every mutation made through the Tx is
// committed together or rolled back together, and rows fetched with the
// ForUpdate methods stay exclusively locked until the unit ends.
type Store interface {
	ExecTx(ctx context.Context, fn func(tx Tx) error) error

	// GetOrder loads an order with its items outside any lock.
	GetOrder(ctx context.Context, id string) (*Order, []Item, error)
}

// Tx is the transaction-scoped view of the store.
type Tx interface {
	// TableForUpdate locks the table row for the remainder of the
	// transaction. Returns table.ErrNotFound when the table does not exist.
	TableForUpdate(ctx context.Context, id int64) (*table.Table, error)
	SaveTable(ctx context.Context, t *table.Table) error

	// OrderForUpdate locks the order row for the remainder of the
	// transaction. Returns ErrNotFound when the order does not exist.
	OrderForUpdate(ctx context.Context, id string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	// UpdateOrder persists status, totals and timestamps and increments the
	// order's version counter.
	UpdateOrder(ctx context.Context, o *Order) error

	InsertItem(ctx context.Context, it *Item) error
	// GetItem returns ErrItemNotFound when the item does not exist or belongs
	// to a different order.
	GetItem(ctx context.Context, orderID, itemID string) (*Item, error)
	DeleteItem(ctx context.Context, orderID, itemID string) error
	ListItems(ctx context.Context, orderID string) ([]Item, error)
}
