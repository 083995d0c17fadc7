package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tablevine/backoffice/internal/domain/inventory"
)

const (
	// Row order matches the fixed global lock order: batches are always
	// locked in ascending (expiry_date, id) within one ingredient, and the
	// allocator iterates ingredients in ascending id order.
	eligibleBatchesSQL = `SELECT id, ingredient_id, quantity, reserved_quantity, expiry_date, received_date, price_per_unit
		FROM inventory_batches
		WHERE ingredient_id = $1 AND expiry_date > $2 AND quantity - reserved_quantity > 0
		ORDER BY expiry_date, id
		FOR UPDATE`

	reservedBatchesSQL = `SELECT id, ingredient_id, quantity, reserved_quantity, expiry_date, received_date, price_per_unit
		FROM inventory_batches
		WHERE ingredient_id = $1 AND reserved_quantity > 0
		ORDER BY expiry_date, id
		FOR UPDATE`

	updateBatchQuantitiesSQL = `UPDATE inventory_batches
		SET quantity = $2, reserved_quantity = $3
		WHERE id = $1`

	expiringSoonSQL = `SELECT id, ingredient_id, quantity, reserved_quantity, expiry_date, received_date, price_per_unit
		FROM inventory_batches
		WHERE expiry_date <= $1 AND quantity - reserved_quantity > 0
		ORDER BY expiry_date, id`

	insertBatchSQL = `INSERT INTO inventory_batches (id, ingredient_id, quantity, reserved_quantity, expiry_date, received_date, price_per_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ inventory.Store = (*BatchStore)(nil)

// BatchStore implements inventory.Store backed by PostgreSQL. The locking
// queries use SELECT ... FOR UPDATE so a batch's read-modify-write never
// interleaves with a concurrent reservation.
type BatchStore struct {
	pool *pgxpool.Pool
}

// NewBatchStore returns a BatchStore that uses the given pool.
func NewBatchStore(pool *pgxpool.Pool) *BatchStore {
	return &BatchStore{pool: pool}
}

// ExecTx runs fn inside one database transaction.
func (s *BatchStore) ExecTx(ctx context.Context, fn func(tx inventory.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&batchTx{tx: tx})
	})
}

// ExpiringSoon lists batches expiring at or before date with positive
// available quantity. No locks are taken.
func (s *BatchStore) ExpiringSoon(ctx context.Context, date time.Time) ([]inventory.Batch, error) {
	rows, err := s.pool.Query(ctx, expiringSoonSQL, date)
	if err != nil {
		return nil, fmt.Errorf("listing expiring batches: %w", err)
	}
	return pgx.CollectRows(rows, scanBatch)
}

// CreateBatch inserts a received batch. Used by the receiving process and
// seed tooling; reservation changes go through ExecTx.
func (s *BatchStore) CreateBatch(ctx context.Context, b *inventory.Batch) error {
	_, err := s.pool.Exec(ctx, insertBatchSQL,
		b.ID, b.IngredientID, b.Quantity, b.Reserved, b.ExpiryDate, b.ReceivedDate, b.PricePerUnit,
	)
	if err != nil {
		return fmt.Errorf("inserting batch %q: %w", b.ID, err)
	}
	return nil
}

type batchTx struct {
	tx pgx.Tx
}

func (t *batchTx) EligibleBatches(ctx context.Context, ingredientID int64, now time.Time) ([]inventory.Batch, error) {
	rows, err := t.tx.Query(ctx, eligibleBatchesSQL, ingredientID, now)
	if err != nil {
		return nil, fmt.Errorf("locking eligible batches of ingredient %d: %w", ingredientID, err)
	}
	return pgx.CollectRows(rows, scanBatch)
}

func (t *batchTx) ReservedBatches(ctx context.Context, ingredientID int64) ([]inventory.Batch, error) {
	rows, err := t.tx.Query(ctx, reservedBatchesSQL, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("locking reserved batches of ingredient %d: %w", ingredientID, err)
	}
	return pgx.CollectRows(rows, scanBatch)
}

func (t *batchTx) UpdateQuantities(ctx context.Context, batchID string, quantity, reserved decimal.Decimal) error {
	ct, err := t.tx.Exec(ctx, updateBatchQuantitiesSQL, batchID, quantity, reserved)
	if err != nil {
		return fmt.Errorf("updating batch %q: %w", batchID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("updating batch %q: no such batch", batchID)
	}
	return nil
}

func scanBatch(row pgx.CollectableRow) (inventory.Batch, error) {
	var b inventory.Batch
	err := row.Scan(
		&b.ID, &b.IngredientID, &b.Quantity, &b.Reserved,
		&b.ExpiryDate, &b.ReceivedDate, &b.PricePerUnit,
	)
	return b, err
}
