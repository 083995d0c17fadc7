package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tablevine/backoffice/internal/domain/inventory"
)

type reservationRequest struct {
	Ingredients []ingredientQty `json:"ingredients"`
}

type ingredientQty struct {
	IngredientID int64   `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
}

type batchResponse struct {
	ID           string  `json:"id"`
	IngredientID int64   `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
	Reserved     float64 `json:"reservedQuantity"`
	Available    float64 `json:"availableQuantity"`
	ExpiryDate   string  `json:"expiryDate"`
	ReceivedDate string  `json:"receivedDate"`
}

const dateLayout = "2006-01-02"

func (r reservationRequest) requirements() ([]inventory.Requirement, bool) {
	if len(r.Ingredients) == 0 {
		return nil, false
	}
	reqs := make([]inventory.Requirement, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		if ing.Quantity <= 0 {
			return nil, false
		}
		reqs[i] = inventory.Requirement{
			IngredientID: ing.IngredientID,
			Quantity:     decimal.NewFromFloat(ing.Quantity),
		}
	}
	return reqs, true
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	reqs, ok := req.requirements()
	if !ok {
		badRequest(w, "ingredients must be non-empty with positive quantities")
		return
	}

	if err := h.stock.ReserveAll(r.Context(), reqs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	reqs, ok := req.requirements()
	if !ok {
		badRequest(w, "ingredients must be non-empty with positive quantities")
		return
	}

	if err := h.stock.Release(r.Context(), reqs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) consume(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	reqs, ok := req.requirements()
	if !ok {
		badRequest(w, "ingredients must be non-empty with positive quantities")
		return
	}

	if err := h.stock.Consume(r.Context(), reqs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	date := time.Now().AddDate(0, 0, 7)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			badRequest(w, "date must be formatted as YYYY-MM-DD")
			return
		}
		date = parsed
	}

	batches, err := h.stock.ExpiringSoon(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]batchResponse, len(batches))
	for i, b := range batches {
		resp[i] = batchResponse{
			ID:           b.ID,
			IngredientID: b.IngredientID,
			Quantity:     b.Quantity.InexactFloat64(),
			Reserved:     b.Reserved.InexactFloat64(),
			Available:    b.Available().InexactFloat64(),
			ExpiryDate:   b.ExpiryDate.Format(dateLayout),
			ReceivedDate: b.ReceivedDate.Format(dateLayout),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
