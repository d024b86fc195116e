package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn         *amqp.Connection
	ch           *amqp.Channel
	primaryQueue string
}

// NewPublisher dials the broker, declares the durable queue and enables
// publish confirms, so a returned nil error means the broker has the
// message.
func NewPublisher(amqpURL, queueName string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publish confirms: %w", err)
	}

	return &Publisher{
		conn:         conn,
		ch:           ch,
		primaryQueue: queueName,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, event SubmittedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         b,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ReviewID,
		Timestamp:    time.Now(),
	}
	return p.ch.PublishWithContext(ctx, "", p.primaryQueue, false, false, pub)
}

func (p *Publisher) PublishWithRetry(ctx context.Context, event SubmittedEvent, maxAttempts int) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = p.Publish(ctx, event)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled: %w", err)
		case <-time.After(p.backoffDelay(attempt)):
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", maxAttempts, err)
}

func (p *Publisher) backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 500 * time.Millisecond
	case 2:
		return 2 * time.Second
	case 3:
		return 5 * time.Second
	default:
		return 15 * time.Second
	}
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
