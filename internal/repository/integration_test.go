//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tablevine/backoffice/internal/domain/inventory"
	"github.com/tablevine/backoffice/internal/domain/order"
	"github.com/tablevine/backoffice/internal/domain/staff"
	"github.com/tablevine/backoffice/internal/domain/table"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "resto"
	pgPassword = "resto"
	pgDatabase = "resto_test"
)

// startPostgres runs a throwaway PostgreSQL container, applies the schema
// and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgUser, pgPassword, host, port.Port(), pgDatabase)

	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedTable(t *testing.T, pool *pgxpool.Pool, number, capacity int) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO tables (number, capacity, status) VALUES ($1, $2, 'FREE') RETURNING id`,
		number, capacity,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedWaiter(t *testing.T, pool *pgxpool.Pool, name string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO waiters (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedBatch(t *testing.T, store *BatchStore, ingredientID int64, qty string, expiry time.Time) string {
	t.Helper()
	b := &inventory.Batch{
		ID:           uuid.NewString(),
		IngredientID: ingredientID,
		Quantity:     decimal.RequireFromString(qty),
		Reserved:     decimal.Zero,
		ExpiryDate:   expiry,
		ReceivedDate: expiry.AddDate(0, 0, -10),
		PricePerUnit: decimal.RequireFromString("2.50"),
	}
	require.NoError(t, store.CreateBatch(context.Background(), b))
	return b.ID
}

func TestOrderStore_CreateFlow(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	tableID := seedTable(t, pool, 1, 4)
	waiterID := seedWaiter(t, pool, "Ana")

	waiters := NewWaiterDirectory(pool)
	w, err := waiters.GetByID(ctx, waiterID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", w.Name)

	_, err = waiters.GetByID(ctx, waiterID+100)
	require.ErrorIs(t, err, staff.ErrWaiterNotFound)

	store := NewOrderStore(pool)
	o := &order.Order{
		ID:          uuid.NewString(),
		TableID:     tableID,
		WaiterID:    waiterID,
		Status:      order.StatusCreated,
		TotalAmount: decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	}
	err = store.ExecTx(ctx, func(tx order.Tx) error {
		tbl, err := tx.TableForUpdate(ctx, tableID)
		if err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		tbl.Status = table.StatusOccupied
		return tx.SaveTable(ctx, tbl)
	})
	require.NoError(t, err)

	got, items, err := store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCreated, got.Status)
	assert.Empty(t, items)
	assert.EqualValues(t, 0, got.Version)
}

func TestOrderStore_RollbackLeavesNoTrace(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	tableID := seedTable(t, pool, 1, 4)
	waiterID := seedWaiter(t, pool, "Ana")
	store := NewOrderStore(pool)

	orderID := uuid.NewString()
	err := store.ExecTx(ctx, func(tx order.Tx) error {
		o := &order.Order{
			ID:          orderID,
			TableID:     tableID,
			WaiterID:    waiterID,
			Status:      order.StatusCreated,
			TotalAmount: decimal.Zero,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return table.ErrOccupied
	})
	require.ErrorIs(t, err, table.ErrOccupied)

	_, _, err = store.GetOrder(ctx, orderID)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderStore_ItemLifecycleAndVersioning(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	tableID := seedTable(t, pool, 1, 4)
	waiterID := seedWaiter(t, pool, "Ana")
	store := NewOrderStore(pool)

	o := &order.Order{
		ID:          uuid.NewString(),
		TableID:     tableID,
		WaiterID:    waiterID,
		Status:      order.StatusCreated,
		TotalAmount: decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.ExecTx(ctx, func(tx order.Tx) error {
		return tx.InsertOrder(ctx, o)
	}))

	it := &order.Item{
		ID:       uuid.NewString(),
		OrderID:  o.ID,
		DishID:   11,
		DishName: "Carbonara",
		Price:    decimal.RequireFromString("14.50"),
		Quantity: 2,
	}
	require.NoError(t, store.ExecTx(ctx, func(tx order.Tx) error {
		loaded, err := tx.OrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertItem(ctx, it); err != nil {
			return err
		}
		loaded.TotalAmount = loaded.TotalAmount.Add(it.Subtotal())
		if err := tx.UpdateOrder(ctx, loaded); err != nil {
			return err
		}
		*o = *loaded
		return nil
	}))

	assert.Equal(t, "29.00", o.TotalAmount.StringFixed(2))
	assert.EqualValues(t, 1, o.Version)

	require.NoError(t, store.ExecTx(ctx, func(tx order.Tx) error {
		got, err := tx.GetItem(ctx, o.ID, it.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "Carbonara", got.DishName)
		return tx.DeleteItem(ctx, o.ID, it.ID)
	}))

	_, items, err := store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = store.ExecTx(ctx, func(tx order.Tx) error {
		_, err := tx.GetItem(ctx, o.ID, it.ID)
		return err
	})
	require.ErrorIs(t, err, order.ErrItemNotFound)
}

func TestOrderStore_TableLockSerializesWriters(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	tableID := seedTable(t, pool, 1, 4)
	waiterID := seedWaiter(t, pool, "Ana")
	store := NewOrderStore(pool)

	createOnTable := func() error {
		return store.ExecTx(ctx, func(tx order.Tx) error {
			tbl, err := tx.TableForUpdate(ctx, tableID)
			if err != nil {
				return err
			}
			if tbl.Status == table.StatusOccupied {
				return table.ErrOccupied
			}
			o := &order.Order{
				ID:          uuid.NewString(),
				TableID:     tableID,
				WaiterID:    waiterID,
				Status:      order.StatusCreated,
				TotalAmount: decimal.Zero,
				CreatedAt:   time.Now().UTC(),
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			tbl.Status = table.StatusOccupied
			return tx.SaveTable(ctx, tbl)
		})
	}

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := createOnTable()
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, table.ErrOccupied)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestBatchStore_FEFOOrderAndRollback(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := NewBatchStore(pool)
	now := time.Now().UTC()

	lateID := seedBatch(t, store, 101, "20", now.AddDate(0, 0, 14))
	earlyID := seedBatch(t, store, 101, "5", now.AddDate(0, 0, 3))
	seedBatch(t, store, 101, "50", now.AddDate(0, 0, -1)) // expired, must be invisible

	var ordered []string
	err := store.ExecTx(ctx, func(tx inventory.Tx) error {
		batches, err := tx.EligibleBatches(ctx, 101, now)
		if err != nil {
			return err
		}
		for _, b := range batches {
			ordered = append(ordered, b.ID)
		}
		// Mutate, then force a rollback.
		if err := tx.UpdateQuantities(ctx, earlyID, decimal.RequireFromString("5"), decimal.RequireFromString("5")); err != nil {
			return err
		}
		return &inventory.InsufficientStockError{IngredientID: 101}
	})
	var isErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &isErr)

	require.Equal(t, []string{earlyID, lateID}, ordered)

	// The rollback undid the reservation.
	require.NoError(t, store.ExecTx(ctx, func(tx inventory.Tx) error {
		batches, err := tx.EligibleBatches(ctx, 101, now)
		if err != nil {
			return err
		}
		for _, b := range batches {
			assert.True(t, b.Reserved.IsZero(), "batch %s has leftover reservation", b.ID)
		}
		return nil
	}))
}

func TestBatchStore_ConcurrentReservesNeverOversell(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := NewBatchStore(pool)
	allocator := inventory.NewAllocator(store)
	now := time.Now().UTC()

	seedBatch(t, store, 101, "6", now.AddDate(0, 0, 3))
	seedBatch(t, store, 101, "4", now.AddDate(0, 0, 8))

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := allocator.Reserve(ctx, 101, decimal.NewFromInt(1))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else {
				var isErr *inventory.InsufficientStockError
				assert.ErrorAs(t, err, &isErr)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	var total decimal.Decimal
	err := pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(reserved_quantity), 0) FROM inventory_batches WHERE ingredient_id = 101`,
	).Scan(&total)
	require.NoError(t, err)
	assert.Equal(t, "10", total.String())
}

func TestBatchStore_ExpiringSoon(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := NewBatchStore(pool)
	now := time.Now().UTC()

	soonID := seedBatch(t, store, 101, "5", now.AddDate(0, 0, 2))
	seedBatch(t, store, 101, "5", now.AddDate(0, 0, 30))

	drainedID := seedBatch(t, store, 102, "5", now.AddDate(0, 0, 1))
	require.NoError(t, store.ExecTx(ctx, func(tx inventory.Tx) error {
		return tx.UpdateQuantities(ctx, drainedID, decimal.RequireFromString("5"), decimal.RequireFromString("5"))
	}))

	batches, err := store.ExpiringSoon(ctx, now.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, soonID, batches[0].ID)
}
