package menuclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablevine/backoffice/internal/domain/menu"
)

func newTestClient(baseURL string) *Client {
	return New(Config{BaseURL: baseURL, Timeout: time.Second}, nil)
}

func TestGetDish_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dishes/11", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":11,"name":"Carbonara","price":"14.50"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	d, err := c.GetDish(context.Background(), 11)
	require.NoError(t, err)

	assert.Equal(t, int64(11), d.ID)
	assert.Equal(t, "Carbonara", d.Name)
	assert.Equal(t, "14.50", d.Price.StringFixed(2))
}

func TestGetDish_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.GetDish(context.Background(), 404)
	require.ErrorIs(t, err, menu.ErrDishNotFound)
}

func TestGetDish_MissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":11,"name":"Carbonara"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.GetDish(context.Background(), 11)

	var bdErr *menu.BadDishDataError
	require.ErrorAs(t, err, &bdErr)
	assert.Equal(t, int64(11), bdErr.DishID)
	assert.Equal(t, "price", bdErr.Field)
}

func TestGetDish_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.GetDish(context.Background(), 11)

	var uaErr *menu.UnavailableError
	require.ErrorAs(t, err, &uaErr)
}

func TestGetDish_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	// Drive the breaker past its failure threshold.
	for i := 0; i < 5; i++ {
		_, err := c.GetDish(context.Background(), 11)
		require.Error(t, err)
	}
	seen := calls.Load()

	// The open breaker now fails fast without reaching the server.
	_, err := c.GetDish(context.Background(), 11)

	var uaErr *menu.UnavailableError
	require.ErrorAs(t, err, &uaErr)
	assert.Equal(t, seen, calls.Load())
}

func TestGetDish_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	for i := 0; i < 10; i++ {
		_, err := c.GetDish(context.Background(), 404)
		require.ErrorIs(t, err, menu.ErrDishNotFound)
	}

	// Every lookup reached the server; the breaker never opened.
	assert.Equal(t, int32(10), calls.Load())
}
