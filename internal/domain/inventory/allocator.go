package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Allocator reserves, releases and consumes ingredient stock against
// expiry-dated batches using a First-Expire-First-Out walk. All multi-batch
// mutations run inside one store transaction and acquire batch locks in a
// fixed (ingredient id, expiry date, batch id) order, so concurrent
// allocations cannot deadlock or oversell.
type Allocator struct {
	store Store
	now   func() time.Time
}

// NewAllocator creates an Allocator backed by the given store.
func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store, now: time.Now}
}

// Reserve allocates the required quantity of one ingredient. Allocation is
// all-or-nothing: on InsufficientStockError no batch is mutated.
func (a *Allocator) Reserve(ctx context.Context, ingredientID int64, quantity decimal.Decimal) error {
	return a.ReserveAll(ctx, []Requirement{{IngredientID: ingredientID, Quantity: quantity}})
}

// ReserveAll allocates every requirement inside one atomic unit: either all
// ingredients are fully reserved or none are. Requirements are processed in
// ascending ingredient order regardless of argument order.
func (a *Allocator) ReserveAll(ctx context.Context, reqs []Requirement) error {
	ordered := sortedRequirements(reqs)
	now := a.now()

	return a.store.ExecTx(ctx, func(tx Tx) error {
		for _, req := range ordered {
			batches, err := tx.EligibleBatches(ctx, req.IngredientID, now)
			if err != nil {
				return err
			}

			remaining := req.Quantity
			for i := range batches {
				if !remaining.IsPositive() {
					break
				}
				b := &batches[i]
				take := decimal.Min(remaining, b.Available())
				if err := tx.UpdateQuantities(ctx, b.ID, b.Quantity, b.Reserved.Add(take)); err != nil {
					return err
				}
				remaining = remaining.Sub(take)
			}

			if remaining.IsPositive() {
				// Rollback of the enclosing transaction undoes every
				// increment applied so far, for this ingredient and any
				// earlier one.
				return &InsufficientStockError{
					IngredientID: req.IngredientID,
					Required:     req.Quantity,
					Available:    req.Quantity.Sub(remaining),
				}
			}
		}
		return nil
	})
}

// Release returns previously reserved quantities to the available pool,
// walking batches in expiry order. Quantities beyond what is actually
// reserved are ignored, matching consume semantics.
func (a *Allocator) Release(ctx context.Context, reqs []Requirement) error {
	return a.unreserve(ctx, reqs, false)
}

// Consume removes reserved quantities from stock entirely: both the reserved
// and the total quantity of touched batches decrease.
func (a *Allocator) Consume(ctx context.Context, reqs []Requirement) error {
	return a.unreserve(ctx, reqs, true)
}

func (a *Allocator) unreserve(ctx context.Context, reqs []Requirement, consume bool) error {
	ordered := sortedRequirements(reqs)

	return a.store.ExecTx(ctx, func(tx Tx) error {
		for _, req := range ordered {
			batches, err := tx.ReservedBatches(ctx, req.IngredientID)
			if err != nil {
				return err
			}

			remaining := req.Quantity
			for i := range batches {
				if !remaining.IsPositive() {
					break
				}
				b := &batches[i]
				take := decimal.Min(remaining, b.Reserved)
				quantity := b.Quantity
				if consume {
					quantity = quantity.Sub(take)
				}
				if err := tx.UpdateQuantities(ctx, b.ID, quantity, b.Reserved.Sub(take)); err != nil {
					return err
				}
				remaining = remaining.Sub(take)
			}

			if remaining.IsPositive() {
				zctx.From(ctx).Warn("Less stock reserved than requested to release",
					zap.Int64("ingredient_id", req.IngredientID),
					zap.String("missing", remaining.String()))
			}
		}
		return nil
	})
}

// ExpiringSoon lists batches expiring at or before the given date that still
// have available quantity. Read-only: no locks, no side effects.
func (a *Allocator) ExpiringSoon(ctx context.Context, date time.Time) ([]Batch, error) {
	return a.store.ExpiringSoon(ctx, date)
}

// sortedRequirements merges duplicate ingredients and returns requirements
// in ascending ingredient order, the global lock order.
func sortedRequirements(reqs []Requirement) []Requirement {
	merged := make(map[int64]decimal.Decimal, len(reqs))
	for _, r := range reqs {
		merged[r.IngredientID] = merged[r.IngredientID].Add(r.Quantity)
	}
	out := make([]Requirement, 0, len(merged))
	for id, qty := range merged {
		out = append(out, Requirement{IngredientID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out
}
