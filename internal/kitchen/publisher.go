package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tablevine/backoffice/internal/domain/order"
)

var _ order.EventPublisher = (*Publisher)(nil)

// Publisher implements order.EventPublisher on top of a Kafka writer.
// Writes are synchronous: the kitchen hand-off must report delivery failure
// to its caller, so there is no async buffering here.
type Publisher struct {
	w *kafka.Writer
}

// NewPublisher creates a Publisher for the given brokers. Messages are keyed
// by order id so all events of one order land in the same partition.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// OrderCreated publishes an ORDER_CREATED event.
func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, TopicOrdersCreated, o.ID, EventOrderCreated, OrderCreatedPayload{
		OrderID:     o.ID,
		TableID:     o.TableID,
		WaiterID:    o.WaiterID,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
	})
}

// OrderSentToKitchen publishes the kitchen hand-off with the item snapshot.
func (p *Publisher) OrderSentToKitchen(ctx context.Context, o *order.Order, items []order.Item) error {
	payload := OrderSentToKitchenPayload{
		OrderID: o.ID,
		TableID: o.TableID,
		SentAt:  time.Now(),
		Items:   make([]KitchenItem, len(items)),
	}
	for i, it := range items {
		payload.Items[i] = KitchenItem{
			ItemID:              it.ID,
			DishID:              it.DishID,
			DishName:            it.DishName,
			Price:               it.Price,
			Quantity:            it.Quantity,
			SpecialInstructions: it.SpecialRequest,
		}
	}
	return p.publish(ctx, TopicOrdersSentToKitchen, o.ID, EventOrderSentToKitchen, payload)
}

// OrderClosed publishes an ORDER_CLOSED event.
func (p *Publisher) OrderClosed(ctx context.Context, o *order.Order) error {
	closedAt := time.Now()
	if o.ClosedAt != nil {
		closedAt = *o.ClosedAt
	}
	return p.publish(ctx, TopicOrdersClosed, o.ID, EventOrderClosed, OrderClosedPayload{
		OrderID:     o.ID,
		TableID:     o.TableID,
		TotalAmount: o.TotalAmount,
		ClosedAt:    closedAt,
	})
}

func (p *Publisher) publish(ctx context.Context, topic, key, eventType string, payload interface{}) error {
	value, err := json.Marshal(Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", eventType, err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publishing %s for order %s: %w", eventType, key, err)
	}
	return nil
}
