// Package menuclient implements the menu.Catalog contract over the menu
// service's HTTP API, with a circuit breaker and a short-lived Redis cache
// for dish snapshots.
package menuclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/tablevine/backoffice/internal/domain/menu"
)

// dish cache keys: menu:dish:{id}
const dishCacheKey = "menu:dish:%d"

// Config holds the menu client settings.
type Config struct {
	// BaseURL of the menu service, e.g. http://menu-service:8080.
	BaseURL string
	// Timeout for a single dish lookup.
	Timeout time.Duration
	// CacheTTL bounds staleness of cached dish snapshots. Zero disables
	// caching even when a Redis client is provided.
	CacheTTL time.Duration
}

// Client resolves dishes over HTTP. Failures trip a circuit breaker; while
// the circuit is open, lookups fail fast with menu.UnavailableError instead
// of piling up on a dead collaborator.
type Client struct {
	http     *resty.Client
	breaker  *gobreaker.CircuitBreaker
	cache    *redis.Client
	cacheTTL time.Duration
}

var _ menu.Catalog = (*Client)(nil)

// New creates a menu Client. cache may be nil to run without caching.
func New(cfg Config, cache *redis.Client) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0) // retry policy belongs to the caller

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "menu-service",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// A 404 is a definitive answer from a healthy service, not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, menu.ErrDishNotFound)
		},
	})

	ttl := cfg.CacheTTL
	if cache == nil {
		ttl = 0
	}
	return &Client{
		http:     httpClient,
		breaker:  breaker,
		cache:    cache,
		cacheTTL: ttl,
	}
}

// dishPayload mirrors the menu service's dish document. Price is a pointer:
// a missing price is an upstream data-integrity fault that must surface, not
// default to zero.
type dishPayload struct {
	ID    int64            `json:"id"`
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

// GetDish returns a dish snapshot. A cached snapshot is served when present;
// otherwise the menu service is queried through the circuit breaker and the
// result cached.
func (c *Client) GetDish(ctx context.Context, id int64) (*menu.Dish, error) {
	if d, ok := c.fromCache(ctx, id); ok {
		return d, nil
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &menu.UnavailableError{Op: "getDish", Err: err}
		}
		return nil, err
	}

	payload := result.(*dishPayload)
	if payload.Price == nil {
		return nil, &menu.BadDishDataError{DishID: id, Field: "price"}
	}

	d := &menu.Dish{ID: payload.ID, Name: payload.Name, Price: *payload.Price}
	c.toCache(ctx, d)
	return d, nil
}

// fetch performs one HTTP lookup. Only transport errors and 5xx responses
// count as breaker failures; a 404 is a definitive answer.
func (c *Client) fetch(ctx context.Context, id int64) (*dishPayload, error) {
	var payload dishPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(fmt.Sprintf("/api/dishes/%d", id))
	if err != nil {
		return nil, &menu.UnavailableError{Op: "getDish", Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, menu.ErrDishNotFound
	case resp.IsError():
		return nil, &menu.UnavailableError{
			Op:  "getDish",
			Err: fmt.Errorf("menu service returned %d", resp.StatusCode()),
		}
	}
	return &payload, nil
}

func (c *Client) fromCache(ctx context.Context, id int64) (*menu.Dish, bool) {
	if c.cacheTTL == 0 {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, fmt.Sprintf(dishCacheKey, id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Debug("Dish cache read failed", zap.Int64("dish_id", id), zap.Error(err))
		}
		return nil, false
	}
	var d menu.Dish
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false
	}
	return &d, true
}

func (c *Client) toCache(ctx context.Context, d *menu.Dish) {
	if c.cacheTTL == 0 {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, fmt.Sprintf(dishCacheKey, d.ID), raw, c.cacheTTL).Err(); err != nil {
		zctx.From(ctx).Debug("Dish cache write failed", zap.Int64("dish_id", d.ID), zap.Error(err))
	}
}
