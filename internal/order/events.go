package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const EventOrderCreated = "order.created"

// CreatedEvent is published once per newly reconciled order.
type CreatedEvent struct {
	Type      string          `json:"type"`
	OrderID   string          `json:"orderId"`
	UserID    string          `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []EventItem     `json:"items"`
}

type EventItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func newCreatedEvent(o *Order) CreatedEvent {
	ev := CreatedEvent{
		Type:      EventOrderCreated,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
		Items:     make([]EventItem, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		ev.Items = append(ev.Items, EventItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return ev
}

type Publisher interface {
	PublishCreated(ctx context.Context, ev CreatedEvent) error
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	w MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher { return &KafkaPublisher{w: w} }

func (p *KafkaPublisher) PublishCreated(ctx context.Context, ev CreatedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("order-created-%s", ev.OrderID)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
}

// NopPublisher drops events; used when no brokers are configured.
type NopPublisher struct{ Log zerolog.Logger }

func (p NopPublisher) PublishCreated(_ context.Context, ev CreatedEvent) error {
	p.Log.Debug().Str("order_id", ev.OrderID).Msg("event publishing disabled, dropping order.created")
	return nil
}
