package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablevine/backoffice/internal/domain/staff"
)

const getWaiterSQL = `SELECT id, name FROM waiters WHERE id = $1`

var _ staff.Directory = (*WaiterDirectory)(nil)

// WaiterDirectory implements staff.Directory backed by PostgreSQL.
type WaiterDirectory struct {
	pool *pgxpool.Pool
}

// NewWaiterDirectory returns a WaiterDirectory that uses the given pool.
func NewWaiterDirectory(pool *pgxpool.Pool) *WaiterDirectory {
	return &WaiterDirectory{pool: pool}
}

// GetByID returns a waiter by id, or staff.ErrWaiterNotFound.
func (d *WaiterDirectory) GetByID(ctx context.Context, id int64) (*staff.Waiter, error) {
	var w staff.Waiter
	err := d.pool.QueryRow(ctx, getWaiterSQL, id).Scan(&w.ID, &w.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, staff.ErrWaiterNotFound
		}
		return nil, fmt.Errorf("getting waiter %d: %w", id, err)
	}
	return &w, nil
}
