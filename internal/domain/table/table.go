// Package table holds the dining table aggregate and its occupancy states.
package table

import "github.com/go-faster/errors"

// Sentinel errors for table lookups and state transitions.
var (
	ErrNotFound = errors.New("table not found")
	ErrOccupied = errors.New("table already occupied")
)

// Status is the occupancy state of a table.
type Status string

const (
	StatusFree     Status = "FREE"
	StatusOccupied Status = "OCCUPIED"
)

// Table represents a dining table. A table is OCCUPIED exactly while one
// non-closed order references it.
type Table struct {
	ID       int64
	Number   int
	Capacity int
	Status   Status
}
