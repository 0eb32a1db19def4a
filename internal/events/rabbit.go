package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"backend-transitportal/internal/domain"

	"github.com/rabbitmq/amqp091-go"
)

const Exchange = "assignment_events"

const (
	KindAssigned = "assignment.created"
	KindEnded    = "assignment.ended"
)

type AssignmentEvent struct {
	Kind       string            `json:"kind"`
	Assignment domain.Assignment `json:"assignment"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher sends assignment lifecycle events to a durable fanout exchange so
// owner and admin dashboards can follow bus allocation.
type Publisher struct {
	logger *slog.Logger
	mu     sync.Mutex
	conn   *amqp091.Connection
	ch     *amqp091.Channel
}

func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(err, conn.Close())
	}
	err = ch.ExchangeDeclare(
		Exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, errors.Join(err, conn.Close())
	}
	return &Publisher{logger: logger, conn: conn, ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, kind string, a domain.Assignment) error {
	body, err := Encode(kind, a, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, Exchange, "", false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         kind,
		Body:         body,
	})
	if err != nil {
		p.logger.Error("assignment event publish failed", "kind", kind, "assignment_id", a.ID, "error", err)
	}
	return err
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.ch.Close(), p.conn.Close())
}

func Encode(kind string, a domain.Assignment, at time.Time) ([]byte, error) {
	return json.Marshal(AssignmentEvent{Kind: kind, Assignment: a, OccurredAt: at.UTC()})
}
