package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-hold-service/internal/queue"
)

// AMQPPublisher publishes reservation events to RabbitMQ.  The connection
// is opened on first use and reopened after a failure; errors are returned
// so callers can log and move on.
type AMQPPublisher struct {
	url string
	log *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, log *slog.Logger) *AMQPPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &AMQPPublisher{url: url, log: log}
}

// QueueFor maps an event type to the queue it is routed to.
func QueueFor(eventType string) (string, error) {
	switch eventType {
	case queue.EventConfirmed:
		return queue.ConfirmedQueue, nil
	case queue.EventExpired:
		return queue.ExpiredQueue, nil
	}
	return "", fmt.Errorf("unknown event type %q", eventType)
}

// Publish sends ev as a persistent JSON message on the default exchange,
// routed by queue name.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	name, err := QueueFor(ev.Type)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", name, false, false, pub); err != nil {
		p.log.Warn("rabbitmq: publish failed", "queue", name, "err", err)
		p.reset()
		return err
	}
	return nil
}

// channel returns an open channel with both event queues declared.  The
// caller holds p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	for _, name := range []string{queue.ConfirmedQueue, queue.ExpiredQueue} {
		// Durable so messages survive broker restarts.
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq queue declare %s: %w", name, err)
		}
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
