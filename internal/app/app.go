// Package app wires the application together and runs it.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tablevine/backoffice/internal/domain/inventory"
	"github.com/tablevine/backoffice/internal/domain/order"
	"github.com/tablevine/backoffice/internal/handler"
	"github.com/tablevine/backoffice/internal/kitchen"
	"github.com/tablevine/backoffice/internal/menuclient"
	"github.com/tablevine/backoffice/internal/repository"
	"github.com/tablevine/backoffice/pkg/health"
	"github.com/tablevine/backoffice/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the expiring-stock
// scanner, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Optional Redis dish cache.
	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = cache.Close() }()
	}

	// Kafka lifecycle event publisher.
	publisher := kitchen.NewPublisher(cfg.Kafka.Brokers)
	defer func() { _ = publisher.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if cache != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Stores and collaborator clients.
	orderStore := repository.NewOrderStore(pool)
	batchStore := repository.NewBatchStore(pool)
	waiters := repository.NewWaiterDirectory(pool)
	menuCatalog := menuclient.New(menuclient.Config{
		BaseURL:  cfg.Menu.BaseURL,
		Timeout:  cfg.Menu.Timeout,
		CacheTTL: cfg.Menu.CacheTTL,
	}, cache)

	// Domain services.
	orderService := order.NewService(orderStore, waiters, menuCatalog, publisher)
	allocator := inventory.NewAllocator(batchStore)

	// HTTP surface.
	h := handler.New(orderService, allocator)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	// Background scanner surfacing soon-to-expire stock for waste management.
	if cfg.Expiry.ScanInterval > 0 {
		g.Go(func() error {
			runExpiryScanner(gctx, lg, allocator, cfg.Expiry)
			return nil
		})
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// runExpiryScanner periodically lists batches that expire within the
// configured window and logs them. Read-only; waste disposition is a manual
// back-office action.
func runExpiryScanner(ctx context.Context, lg *zap.Logger, allocator *inventory.Allocator, cfg ExpiryConfig) {
	ticker := time.NewTicker(cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(cfg.Window)
			batches, err := allocator.ExpiringSoon(ctx, cutoff)
			if err != nil {
				lg.Warn("Expiring-batch scan failed", zap.Error(err))
				continue
			}
			if len(batches) == 0 {
				continue
			}
			lg.Info("Batches expiring soon",
				zap.Int("count", len(batches)),
				zap.Time("cutoff", cutoff),
				zap.String("first_batch", batches[0].ID),
				zap.Time("first_expiry", batches[0].ExpiryDate),
			)
		}
	}
}
