// Package menu defines the contract with the menu collaborator service.
package menu

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrDishNotFound is returned when the requested dish does not exist.
var ErrDishNotFound = errors.New("dish not found")

// UnavailableError indicates the menu service could not be reached or
// returned a non-success response.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("menu service unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// BadDishDataError indicates the menu service answered but the dish record is
// structurally invalid (e.g. no price). Treated as a collaborator fault, not
// defaulted.
type BadDishDataError struct {
	DishID int64
	Field  string
}

func (e *BadDishDataError) Error() string {
	return fmt.Sprintf("menu service returned dish %d without %s", e.DishID, e.Field)
}

// Dish is a point-in-time snapshot of a menu entry. Price is always
// populated; a price-less record never leaves the catalog client.
type Dish struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// Catalog resolves dishes from the menu service.
type Catalog interface {
	GetDish(ctx context.Context, id int64) (*Dish, error)
}
