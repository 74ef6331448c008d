// Package events publishes committed order writes to RabbitMQ for systems
// outside this service (reporting, delivery partners, notifications).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/feed"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// Exchange is the durable topic exchange order events are published on.
const Exchange = "orders_topic"

const publishTimeout = 5 * time.Second

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Message is the body of an order event.
type Message struct {
	Kind         feed.Kind       `json:"kind"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	Version      int32           `json:"version"`
	Status       string          `json:"status"`
	OrderType    string          `json:"order_type"`
	PlateNumber  string          `json:"plate_number"`
	Total        decimal.Decimal `json:"total"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Order        database.Order  `json:"order"`
}

// RoutingKey is order.<kind>, e.g. order.completed.
func RoutingKey(k feed.Kind) string {
	return "order." + string(k)
}

// Publisher writes order events to the topic exchange.
type Publisher struct {
	conn *amqp.Connection
	ch   Channel
	log  *slog.Logger
}

// Dial connects to RabbitMQ and declares the exchange.
func Dial(url string, log *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	log.Info("rabbitmq connected", "exchange", Exchange)
	p := NewPublisher(ch, log)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, log: log}
}

// Publish sends one event.
func (p *Publisher) Publish(ctx context.Context, e feed.Event) error {
	body, err := json.Marshal(Message{
		Kind:         e.Kind,
		RestaurantID: e.Order.RestaurantID,
		OrderID:      e.Order.ID,
		Version:      e.Order.Version,
		Status:       e.Order.Status,
		OrderType:    e.Order.OrderType,
		PlateNumber:  e.Order.PlateNumber,
		Total:        e.Order.Total,
		OccurredAt:   e.Order.UpdatedAt,
		Order:        e.Order,
	})
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx,
		Exchange,           // exchange
		RoutingKey(e.Kind), // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    fmt.Sprintf("%s:%d", e.Order.ID, e.Order.Version),
			Timestamp:    e.Order.UpdatedAt,
			Body:         body,
		})
}

// Run forwards the events this instance committed until ctx ends. Writes
// relayed from other instances are skipped; their origin publishes them.
// A lagging subscription is re-opened and the gap logged.
func (p *Publisher) Run(ctx context.Context, broker *feed.Broker, instanceID string) error {
	for {
		sub := broker.Subscribe(ctx, feed.Filter{}, feed.DefaultBuffer)
		for e := range sub.Events() {
			if e.Origin != instanceID {
				continue
			}
			if err := p.Publish(ctx, e); err != nil {
				p.log.Error("publish order event", "order_id", e.Order.ID, "kind", e.Kind, "error", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		p.log.Warn("order event relay fell behind, resubscribing", "error", sub.Err())
	}
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
