// Package staff defines the waiter directory contract.
package staff

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrWaiterNotFound is returned when the referenced waiter does not exist.
var ErrWaiterNotFound = errors.New("waiter not found")

// Waiter identifies an employee who can own orders.
type Waiter struct {
	ID   int64
	Name string
}

// Directory defines read operations over the waiter roster.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*Waiter, error)
}
