package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tablevine/backoffice/internal/domain/order"
)

type createOrderRequest struct {
	TableID         int64  `json:"tableId"`
	WaiterID        int64  `json:"waiterId"`
	SpecialRequests string `json:"specialRequests"`
}

type addItemRequest struct {
	DishID         int64  `json:"dishId"`
	Quantity       int    `json:"quantity"`
	SpecialRequest string `json:"specialRequest"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	TableID         int64               `json:"tableId"`
	WaiterID        int64               `json:"waiterId"`
	Status          string              `json:"status"`
	TotalAmount     float64             `json:"totalAmount"`
	SpecialRequests string              `json:"specialRequests,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	ClosedAt        *time.Time          `json:"closedAt,omitempty"`
	Version         int64               `json:"version"`
	Items           []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID             string  `json:"id"`
	DishID         int64   `json:"dishId"`
	DishName       string  `json:"dishName"`
	Price          float64 `json:"price"`
	Quantity       int     `json:"quantity"`
	SpecialRequest string  `json:"specialRequest,omitempty"`
}

func toOrderResponse(o *order.Order, items []order.Item) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		TableID:         o.TableID,
		WaiterID:        o.WaiterID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount.InexactFloat64(),
		SpecialRequests: o.SpecialRequests,
		CreatedAt:       o.CreatedAt,
		ClosedAt:        o.ClosedAt,
		Version:         o.Version,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:             it.ID,
			DishID:         it.DishID,
			DishName:       it.DishName,
			Price:          it.Price.InexactFloat64(),
			Quantity:       it.Quantity,
			SpecialRequest: it.SpecialRequest,
		})
	}
	return resp
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateOrderRequest{
		TableID:         req.TableID,
		WaiterID:        req.WaiterID,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o, nil))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, items, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, items))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	o, err := h.orders.AddItem(r.Context(), chi.URLParam(r, "orderID"), order.AddItemRequest{
		DishID:         req.DishID,
		Quantity:       req.Quantity,
		SpecialRequest: req.SpecialRequest,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveItem(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}

func (h *Handler) sendToKitchen(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.SendToKitchen(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		// The IN_KITCHEN transition may already be committed when the
		// kitchen publish fails; the 503 tells the caller the hand-off,
		// not the transition, needs remediation.
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}

func (h *Handler) closeOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Close(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}
