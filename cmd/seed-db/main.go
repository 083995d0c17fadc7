// Command seed-db prepares a development database: it runs migrations and
// loads a starter set of tables, waiters and inventory batches.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablevine/backoffice/internal/repository"
)

type seedFile struct {
	Tables []struct {
		Number   int `json:"number"`
		Capacity int `json:"capacity"`
	} `json:"tables"`
	Waiters []struct {
		Name string `json:"name"`
	} `json:"waiters"`
	Batches []struct {
		IngredientID int64           `json:"ingredientId"`
		Quantity     decimal.Decimal `json:"quantity"`
		ExpiryDate   string          `json:"expiryDate"`
		ReceivedDate string          `json:"receivedDate"`
		PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	} `json:"batches"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/backoffice.json", "path to seed data JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	if err := seedTables(ctx, pool, seed); err != nil {
		return errors.Wrap(err, "seed tables")
	}
	if err := seedWaiters(ctx, pool, seed); err != nil {
		return errors.Wrap(err, "seed waiters")
	}
	if err := seedBatches(ctx, pool, seed); err != nil {
		return errors.Wrap(err, "seed inventory batches")
	}

	return nil
}

func seedTables(ctx context.Context, pool repository.Execer, seed seedFile) error {
	slog.Info("upserting tables", slog.Int("count", len(seed.Tables)))

	for _, t := range seed.Tables {
		_, err := pool.Exec(ctx,
			`INSERT INTO tables (number, capacity, status)
			 VALUES ($1, $2, 'FREE')
			 ON CONFLICT (number) DO UPDATE SET capacity = EXCLUDED.capacity`,
			t.Number, t.Capacity,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert table %d", t.Number)
		}

		slog.Info("upserted table", slog.Int("number", t.Number), slog.Int("capacity", t.Capacity))
	}

	return nil
}

func seedWaiters(ctx context.Context, pool repository.Execer, seed seedFile) error {
	slog.Info("upserting waiters", slog.Int("count", len(seed.Waiters)))

	for _, w := range seed.Waiters {
		_, err := pool.Exec(ctx,
			`INSERT INTO waiters (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			w.Name,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert waiter %s", w.Name)
		}

		slog.Info("upserted waiter", slog.String("name", w.Name))
	}

	return nil
}

func seedBatches(ctx context.Context, pool repository.Execer, seed seedFile) error {
	slog.Info("inserting inventory batches", slog.Int("count", len(seed.Batches)))

	for _, b := range seed.Batches {
		expiry, err := time.Parse("2006-01-02", b.ExpiryDate)
		if err != nil {
			return errors.Wrapf(err, "parse expiry date %q", b.ExpiryDate)
		}
		received, err := time.Parse("2006-01-02", b.ReceivedDate)
		if err != nil {
			return errors.Wrapf(err, "parse received date %q", b.ReceivedDate)
		}

		id := uuid.NewString()
		_, err = pool.Exec(ctx,
			`INSERT INTO inventory_batches
			   (id, ingredient_id, quantity, reserved_quantity, expiry_date, received_date, price_per_unit)
			 VALUES ($1, $2, $3, 0, $4, $5, $6)`,
			id, b.IngredientID, b.Quantity, expiry, received, b.PricePerUnit,
		)
		if err != nil {
			return errors.Wrapf(err, "insert batch for ingredient %d", b.IngredientID)
		}

		slog.Info("inserted batch",
			slog.String("id", id),
			slog.Int64("ingredient_id", b.IngredientID),
			slog.String("expiry_date", b.ExpiryDate),
		)
	}

	return nil
}
