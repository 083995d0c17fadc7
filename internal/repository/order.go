package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablevine/backoffice/internal/domain/order"
	"github.com/tablevine/backoffice/internal/domain/table"
)

const (
	getOrderForUpdateSQL = `SELECT id, table_id, waiter_id, status, total_amount, special_requests, created_at, closed_at, version
		FROM orders WHERE id = $1 FOR UPDATE`

	getOrderSQL = `SELECT id, table_id, waiter_id, status, total_amount, special_requests, created_at, closed_at, version
		FROM orders WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (id, table_id, waiter_id, status, total_amount, special_requests, created_at, closed_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)`

	updateOrderSQL = `UPDATE orders
		SET status = $2, total_amount = $3, closed_at = $4, version = version + 1
		WHERE id = $1
		RETURNING version`

	getTableForUpdateSQL = `SELECT id, number, capacity, status FROM tables WHERE id = $1 FOR UPDATE`

	saveTableSQL = `UPDATE tables SET status = $2 WHERE id = $1`

	insertItemSQL = `INSERT INTO order_items (id, order_id, dish_id, dish_name, price, quantity, special_request)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getItemSQL = `SELECT id, order_id, dish_id, dish_name, price, quantity, special_request
		FROM order_items WHERE order_id = $1 AND id = $2`

	deleteItemSQL = `DELETE FROM order_items WHERE order_id = $1 AND id = $2`

	listItemsSQL = `SELECT id, order_id, dish_id, dish_name, price, quantity, special_request
		FROM order_items WHERE order_id = $1 ORDER BY id`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Transactions map
// to database transactions; the ForUpdate lookups translate to row locks.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// ExecTx runs fn inside one database transaction. fn receives a
// transaction-scoped view; any error rolls every mutation back.
func (s *OrderStore) ExecTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

// GetOrder loads an order with its items without locking.
func (s *OrderStore) GetOrder(ctx context.Context, id string) (*order.Order, []order.Item, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, order.ErrNotFound
		}
		return nil, nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := s.pool.Query(ctx, listItemsSQL, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}
	items, err := pgx.CollectRows(itemRows, scanItem)
	if err != nil {
		return nil, nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}
	return &o, items, nil
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) TableForUpdate(ctx context.Context, id int64) (*table.Table, error) {
	rows, err := t.tx.Query(ctx, getTableForUpdateSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking table %d: %w", id, err)
	}
	tbl, err := pgx.CollectExactlyOneRow(rows, scanTable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrNotFound
		}
		return nil, fmt.Errorf("locking table %d: %w", id, err)
	}
	return &tbl, nil
}

func (t *orderTx) SaveTable(ctx context.Context, tbl *table.Table) error {
	ct, err := t.tx.Exec(ctx, saveTableSQL, tbl.ID, tbl.Status)
	if err != nil {
		return fmt.Errorf("saving table %d: %w", tbl.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return table.ErrNotFound
	}
	return nil
}

func (t *orderTx) OrderForUpdate(ctx context.Context, id string) (*order.Order, error) {
	rows, err := t.tx.Query(ctx, getOrderForUpdateSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}
	return &o, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.TableID, o.WaiterID, o.Status, o.TotalAmount, o.SpecialRequests, o.CreatedAt, o.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) UpdateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, updateOrderSQL,
		o.ID, o.Status, o.TotalAmount, o.ClosedAt,
	).Scan(&o.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) InsertItem(ctx context.Context, it *order.Item) error {
	_, err := t.tx.Exec(ctx, insertItemSQL,
		it.ID, it.OrderID, it.DishID, it.DishName, it.Price, it.Quantity, it.SpecialRequest,
	)
	if err != nil {
		return fmt.Errorf("inserting item %q: %w", it.ID, err)
	}
	return nil
}

func (t *orderTx) GetItem(ctx context.Context, orderID, itemID string) (*order.Item, error) {
	rows, err := t.tx.Query(ctx, getItemSQL, orderID, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", itemID, err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", itemID, err)
	}
	return &it, nil
}

func (t *orderTx) DeleteItem(ctx context.Context, orderID, itemID string) error {
	ct, err := t.tx.Exec(ctx, deleteItemSQL, orderID, itemID)
	if err != nil {
		return fmt.Errorf("deleting item %q: %w", itemID, err)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrItemNotFound
	}
	return nil
}

func (t *orderTx) ListItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := t.tx.Query(ctx, listItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.TableID, &o.WaiterID, &o.Status, &o.TotalAmount,
		&o.SpecialRequests, &o.CreatedAt, &o.ClosedAt, &o.Version,
	)
	return o, err
}

func scanItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.DishID, &it.DishName,
		&it.Price, &it.Quantity, &it.SpecialRequest,
	)
	return it, err
}

func scanTable(row pgx.CollectableRow) (table.Table, error) {
	var t table.Table
	err := row.Scan(&t.ID, &t.Number, &t.Capacity, &t.Status)
	return t, err
}
