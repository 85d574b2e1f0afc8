package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/mithaiwala/sweetshop/internal/kafka"
)

// EventPublisher emits order lifecycle events for the downstream payment
// reconciliation consumer. Publishing is fire-and-forget; a purchase never
// fails because the broker is down.
type EventPublisher struct {
	Producer *kafkax.Producer
	Service  string
}

func (p *EventPublisher) OrderCreated(_ context.Context, o *Order) {
	if p == nil || p.Producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			SweetID:    o.SweetID,
			Quantity:   o.Quantity,
			TotalPaise: o.TotalPaise,
			PaymentRef: o.PaymentRef,
		}),
	}
	p.Producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
