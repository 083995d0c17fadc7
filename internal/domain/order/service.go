package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tablevine/backoffice/internal/domain/menu"
	"github.com/tablevine/backoffice/internal/domain/staff"
	"github.com/tablevine/backoffice/internal/domain/table"
)

// ErrEmptyOrder is returned by SendToKitchen for an order with no items.
var ErrEmptyOrder = errors.New("order has no items")

// InvalidQuantityError indicates a line item request with a non-positive
// quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0, got %d", e.Quantity)
}

// WrongStatusError indicates an operation that requires a specific order
// status was invoked in another one.
type WrongStatusError struct {
	OrderID  string
	Status   Status
	Required Status
}

func (e *WrongStatusError) Error() string {
	return fmt.Sprintf("order %s is %s, operation requires %s", e.OrderID, e.Status, e.Required)
}

// KitchenUnavailableError reports a failed kitchen hand-off. The IN_KITCHEN
// transition has already been committed when this error is returned; the
// caller owns remediation.
type KitchenUnavailableError struct {
	OrderID string
	Err     error
}

func (e *KitchenUnavailableError) Error() string {
	return fmt.Sprintf("kitchen queue unavailable for order %s: %v", e.OrderID, e.Err)
}

func (e *KitchenUnavailableError) Unwrap() error { return e.Err }

// CreateOrderRequest holds the input for opening an order on a table.
type CreateOrderRequest struct {
	TableID         int64
	WaiterID        int64
	SpecialRequests string
}

// AddItemRequest holds the input for adding a dish to an order.
type AddItemRequest struct {
	DishID         int64
	Quantity       int
	SpecialRequest string
}

// Service orchestrates the order lifecycle: creation against a free table,
// item mutation, kitchen hand-off and closure. Every operation applies its
// mutations in one store transaction; collaborator calls (menu lookup,
// event publish) always happen outside of it.
type Service struct {
	store  Store
	staff  staff.Directory
	menu   menu.Catalog
	events EventPublisher
	now    func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(store Store, staff staff.Directory, catalog menu.Catalog, events EventPublisher) *Service {
	return &Service{
		store:  store,
		staff:  staff,
		menu:   catalog,
		events: events,
		now:    time.Now,
	}
}

// Create opens a new order on a free table and flips the table to OCCUPIED.
// The occupancy check and the flip share one transaction with the order
// insert, so two concurrent calls against the same table cannot both succeed.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if _, err := s.staff.GetByID(ctx, req.WaiterID); err != nil {
		return nil, errors.Wrap(err, "resolve waiter")
	}

	o := &Order{
		ID:              uuid.New().String(),
		TableID:         req.TableID,
		WaiterID:        req.WaiterID,
		Status:          StatusCreated,
		TotalAmount:     decimal.Zero,
		SpecialRequests: req.SpecialRequests,
		CreatedAt:       s.now(),
	}

	err := s.store.ExecTx(ctx, func(tx Tx) error {
		t, err := tx.TableForUpdate(ctx, req.TableID)
		if err != nil {
			return err
		}
		if t.Status == table.StatusOccupied {
			return table.ErrOccupied
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		t.Status = table.StatusOccupied
		return tx.SaveTable(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.OrderCreated(ctx, o); err != nil {
		zctx.From(ctx).Warn("Failed to publish ORDER_CREATED",
			zap.String("order_id", o.ID), zap.Error(err))
	}
	return o, nil
}

// AddItem resolves the dish through the menu catalog, snapshots its name and
// price into a new item and adds the subtotal to the order's total. The dish
// lookup happens before the transaction opens.
func (s *Service) AddItem(ctx context.Context, orderID string, req AddItemRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: req.Quantity}
	}

	dish, err := s.menu.GetDish(ctx, req.DishID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve dish")
	}

	it := &Item{
		ID:             uuid.New().String(),
		OrderID:        orderID,
		DishID:         dish.ID,
		DishName:       dish.Name,
		Price:          dish.Price,
		Quantity:       req.Quantity,
		SpecialRequest: req.SpecialRequest,
	}

	var updated *Order
	err = s.store.ExecTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.InsertItem(ctx, it); err != nil {
			return errors.Wrap(err, "insert item")
		}
		o.TotalAmount = o.TotalAmount.Add(it.Subtotal())
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order total")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveItem deletes an item and subtracts its subtotal from the order's
// total within one transaction.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error) {
	var updated *Order
	err := s.store.ExecTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		it, err := tx.GetItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, orderID, itemID); err != nil {
			return err
		}
		o.TotalAmount = o.TotalAmount.Sub(it.Subtotal())
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order total")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SendToKitchen transitions a CREATED order with at least one item to
// IN_KITCHEN and notifies the kitchen with an immutable snapshot of the
// items. The transition is committed before the publish; a failed publish
// does not roll it back and is reported as KitchenUnavailableError with the
// already-transitioned order.
func (s *Service) SendToKitchen(ctx context.Context, orderID string) (*Order, error) {
	var (
		updated  *Order
		snapshot []Item
	)
	err := s.store.ExecTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusCreated {
			return &WrongStatusError{OrderID: orderID, Status: o.Status, Required: StatusCreated}
		}
		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyOrder
		}
		o.Status = StatusInKitchen
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order status")
		}
		updated = o
		snapshot = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.OrderSentToKitchen(ctx, updated, snapshot); err != nil {
		return updated, &KitchenUnavailableError{OrderID: orderID, Err: err}
	}
	return updated, nil
}

// Close marks the order CLOSED, stamps closedAt and frees the owning table in
// the same transaction. No status precondition is enforced.
func (s *Service) Close(ctx context.Context, orderID string) (*Order, error) {
	var updated *Order
	err := s.store.ExecTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		o.Status = StatusClosed
		o.ClosedAt = &now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order status")
		}
		t, err := tx.TableForUpdate(ctx, o.TableID)
		if err != nil {
			return err
		}
		t.Status = table.StatusFree
		if err := tx.SaveTable(ctx, t); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.OrderClosed(ctx, updated); err != nil {
		zctx.From(ctx).Warn("Failed to publish ORDER_CLOSED",
			zap.String("order_id", updated.ID), zap.Error(err))
	}
	return updated, nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, []Item, error) {
	return s.store.GetOrder(ctx, orderID)
}
