package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-hold-service/internal/repository"
)

// Archiver persists confirmed reservations.  repository.ConfirmationArchive
// satisfies it.
type Archiver interface {
	Save(ctx context.Context, rec repository.ConfirmationRecord) error
}

// Consumer listens on the reservation.confirmed queue, appends a line per
// event to <LogDir>/reservation.log and hands the event to the archiver
// when one is configured.
type Consumer struct {
	url      string
	logDir   string
	archiver Archiver
	log      *slog.Logger
}

// NewConsumer returns a consumer for the broker at url.  archiver may be nil.
func NewConsumer(url, logDir string, archiver Archiver, log *slog.Logger) *Consumer {
	if logDir == "" {
		logDir = "logs"
	}
	return &Consumer{url: url, logDir: logDir, archiver: archiver, log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures are logged and retried with exponential backoff capped at 30s,
// so the HTTP server keeps running while the broker is away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("reservation-consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("reservation-consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("reservation-consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(ConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				c.log.Error("reservation-consumer: handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := c.appendLog(ev); err != nil {
		return err
	}
	if c.archiver == nil || ev.Type != EventConfirmed {
		return nil
	}
	confirmedAt, err := time.Parse(time.RFC3339, ev.OccurredAt)
	if err != nil {
		confirmedAt = time.Now().UTC()
	}
	rec := repository.ConfirmationRecord{
		ReservationID:    ev.ReservationID,
		HoldID:           ev.HoldID,
		Email:            ev.Email,
		ConfirmationHash: ev.ConfirmationHash,
		SeatLabels:       ev.SeatLabels,
		ConfirmedAt:      confirmedAt,
	}
	if err := c.archiver.Save(ctx, rec); err != nil {
		return fmt.Errorf("archive reservation %d: %w", ev.ReservationID, err)
	}
	return nil
}

func (c *Consumer) appendLog(ev ReservationEvent) error {
	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.logDir, "reservation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Reservation %s | event_id=%s | reservation_id=%d | hold_id=%d | seats=[%s]\n",
		ev.OccurredAt, ev.Type, ev.EventID, ev.ReservationID, ev.HoldID, strings.Join(ev.SeatLabels, ","))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
