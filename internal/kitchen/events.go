// Package kitchen publishes order lifecycle events to Kafka for the kitchen
// and billing services.
package kitchen

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kafka topics consumed by downstream services.
const (
	TopicOrdersCreated       = "restaurant.orders.created"
	TopicOrdersSentToKitchen = "restaurant.orders.sent-to-kitchen"
	TopicOrdersClosed        = "restaurant.orders.closed"
)

// Event types carried in the envelope.
const (
	EventOrderCreated       = "ORDER_CREATED"
	EventOrderSentToKitchen = "ORDER_SENT_TO_KITCHEN"
	EventOrderClosed        = "ORDER_CLOSED"
)

// Envelope wraps every published payload with delivery metadata.
type Envelope struct {
	EventID   string      `json:"eventId"`
	EventType string      `json:"eventType"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderCreatedPayload announces a freshly opened order.
type OrderCreatedPayload struct {
	OrderID     string          `json:"orderId"`
	TableID     int64           `json:"tableId"`
	WaiterID    int64           `json:"waiterId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// KitchenItem is one line of the kitchen hand-off snapshot.
type KitchenItem struct {
	ItemID              string          `json:"orderItemId"`
	DishID              int64           `json:"dishId"`
	DishName            string          `json:"dishName"`
	Price               decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
}

// OrderSentToKitchenPayload carries the immutable item snapshot the kitchen
// should prepare.
type OrderSentToKitchenPayload struct {
	OrderID string        `json:"orderId"`
	TableID int64         `json:"tableId"`
	SentAt  time.Time     `json:"sentAt"`
	Items   []KitchenItem `json:"items"`
}

// OrderClosedPayload announces order closure for billing.
type OrderClosedPayload struct {
	OrderID     string          `json:"orderId"`
	TableID     int64           `json:"tableId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ClosedAt    time.Time       `json:"closedAt"`
}
