// Package queue also contains the background consumer that listens to
// the ticket.issued queue and drives out-of-band credential delivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryRecorder marks a ticket's delivery attempt in the store.
// Implemented by repository.TicketRepo.
type DeliveryRecorder interface {
	MarkEmailSent(ctx context.Context, ticketID string, at time.Time) error
}

// StartDeliveryConsumer connects to RabbitMQ, declares the ticket.issued
// queue (durable) and consumes events.  Each event is appended to
// logs/delivery.log and the ticket's email_sent_at is recorded.  The
// function runs a reconnect loop with exponential backoff and keeps the
// server operating through broker outages; processing errors reject the
// message without requeue to avoid tight redelivery loops.
func StartDeliveryConsumer(store DeliveryRecorder) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("delivery-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, store); err != nil {
			log.Printf("delivery-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, store DeliveryRecorder) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("delivery-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(ticketIssuedQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(ticketIssuedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleTicketIssued(d.Body, store); err != nil {
			log.Printf("delivery-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleTicketIssued(body []byte, store DeliveryRecorder) error {
	var ev TicketIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := appendDeliveryLog(ev); err != nil {
		return err
	}

	// The ticket row outlives any delivery failure; the timestamp is
	// informational for support staff.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.MarkEmailSent(ctx, ev.TicketID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}

func appendDeliveryLog(ev TicketIssuedEvent) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "delivery.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Ticket issued | ticket=%s | number=%s | order=%s | holder=\"%s %s\" <%s> | type=%s\n",
		ev.IssuedAt, ev.TicketID, ev.TicketNumber, ev.OrderID, ev.FirstName, ev.LastName, ev.Email, ev.TicketType)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
