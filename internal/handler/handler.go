// Package handler exposes the order lifecycle and stock reservation
// operations over HTTP and translates domain errors to status codes.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tablevine/backoffice/internal/domain/inventory"
	"github.com/tablevine/backoffice/internal/domain/menu"
	"github.com/tablevine/backoffice/internal/domain/order"
	"github.com/tablevine/backoffice/internal/domain/staff"
	"github.com/tablevine/backoffice/internal/domain/table"
)

// OrderService is the slice of the order lifecycle service used by HTTP
// handlers.
type OrderService interface {
	Create(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	AddItem(ctx context.Context, orderID string, req order.AddItemRequest) (*order.Order, error)
	RemoveItem(ctx context.Context, orderID, itemID string) (*order.Order, error)
	SendToKitchen(ctx context.Context, orderID string) (*order.Order, error)
	Close(ctx context.Context, orderID string) (*order.Order, error)
	Get(ctx context.Context, orderID string) (*order.Order, []order.Item, error)
}

// StockAllocator is the slice of the reservation allocator used by HTTP
// handlers.
type StockAllocator interface {
	ReserveAll(ctx context.Context, reqs []inventory.Requirement) error
	Release(ctx context.Context, reqs []inventory.Requirement) error
	Consume(ctx context.Context, reqs []inventory.Requirement) error
	ExpiringSoon(ctx context.Context, date time.Time) ([]inventory.Batch, error)
}

// Handler wires the domain services to chi routes.
type Handler struct {
	orders OrderService
	stock  StockAllocator
}

// New constructs a Handler.
func New(orders OrderService, stock StockAllocator) *Handler {
	return &Handler{orders: orders, stock: stock}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Post("/items", h.addItem)
			r.Delete("/items/{itemID}", h.removeItem)
			r.Post("/send", h.sendToKitchen)
			r.Post("/close", h.closeOrder)
		})
	})
	r.Post("/reservations", h.reserve)
	r.Delete("/reservations", h.release)
	r.Post("/reservations/consume", h.consume)
	r.Get("/inventory/expiring", h.expiring)
	return r
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeError maps domain errors onto the HTTP taxonomy: 404 for missing
// resources, 409 for business conflicts (occupied table, wrong status, empty
// order, insufficient stock), 422 for invalid input, 503 for collaborator
// faults.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		wrongStatus  *order.WrongStatusError
		invalidQty   *order.InvalidQuantityError
		insufficient *inventory.InsufficientStockError
		menuDown     *menu.UnavailableError
		badDish      *menu.BadDishDataError
		kitchenDown  *order.KitchenUnavailableError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, table.ErrNotFound),
		errors.Is(err, staff.ErrWaiterNotFound),
		errors.Is(err, menu.ErrDishNotFound):
		status = http.StatusNotFound
	case errors.Is(err, table.ErrOccupied),
		errors.Is(err, order.ErrEmptyOrder),
		errors.As(err, &wrongStatus),
		errors.As(err, &insufficient):
		status = http.StatusConflict
	case errors.As(err, &invalidQty):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &menuDown),
		errors.As(err, &badDish),
		errors.As(err, &kitchenDown):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		writeJSON(w, status, errorResponse{Code: status, Message: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Code: status, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    http.StatusUnprocessableEntity,
		Message: msg,
	})
}
