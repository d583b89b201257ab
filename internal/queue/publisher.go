package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes activity messages on a confirm-mode channel and
// waits for the broker ack, so a returned nil means the message is durable.
type RabbitMQPublisher struct {
	client *RabbitMQ
	now    func() time.Time
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, now: time.Now}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg ActivityMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	publishing, err := activityPublishing(msg, p.now().UTC())
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish activity %s to queue %q: %w", msg.ID, queue, err)
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for broker confirm of activity %s: %w", msg.ID, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked activity %s", msg.ID)
	}

	return nil
}

// activityPublishing builds the persistent AMQP message for msg.
func activityPublishing(msg ActivityMessage, publishedAt time.Time) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid activity message: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal activity message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     publishedAt,
		MessageId:     msg.ID,
		CorrelationId: msg.CorrelationID,
		Priority:      PriorityValue(msg.Action),
		Type:          msg.Action,
		Body:          body,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// ActivityRecorder hands activity entries to the broker for the worker to persist.
type ActivityRecorder struct {
	publisher Publisher
}

func NewActivityRecorder(publisher Publisher) *ActivityRecorder {
	return &ActivityRecorder{publisher: publisher}
}

func (r *ActivityRecorder) Record(ctx context.Context, entry domain.ActivityEntry) error {
	if r == nil || r.publisher == nil {
		return fmt.Errorf("activity recorder is not initialized")
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	return r.publisher.Publish(ctx, ActivityQueue, NewActivityMessage(entry, correlationID))
}
