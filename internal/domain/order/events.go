package order

import "context"

// EventPublisher notifies downstream collaborators about lifecycle
// transitions. Publishes happen strictly after the transition has been
// committed; no store lock is ever held across a publish.
//
// OrderSentToKitchen is the kitchen hand-off and its failure is surfaced to
// the caller. OrderCreated and OrderClosed are best-effort notifications.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o *Order) error
	OrderSentToKitchen(ctx context.Context, o *Order, items []Item) error
	OrderClosed(ctx context.Context, o *Order) error
}
