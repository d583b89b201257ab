package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// attemptsHeader counts how many times the worker has failed a message.
	attemptsHeader     = "x-labelflow-attempts"
	defaultMaxAttempts = 10
	republishTimeout   = 5 * time.Second
)

// RabbitMQConsumer delivers activity messages to a handler. A failed message
// is republished with an attempt counter and dead-lettered once the counter
// reaches maxAttempts.
type RabbitMQConsumer struct {
	client      *RabbitMQ
	prefetch    int
	maxAttempts int
	logger      *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch, maxAttempts int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:      client,
		prefetch:    prefetch,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Consume blocks until ctx is cancelled, reopening the channel with backoff
// whenever the broker closes it.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}
		c.logger.Warn("activity consumer interrupted, retrying",
			zap.String("queue", queue),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := c.handleDelivery(ctx, ch, queue, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(
	ctx context.Context,
	ch *amqp.Channel,
	queue string,
	d amqp.Delivery,
	handler MessageHandler,
) error {
	msg, err := decodeDelivery(d)
	if err != nil {
		c.logger.Warn("dead-lettering malformed activity message",
			zap.Error(err),
			zap.String("messageId", d.MessageId),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject malformed message: %w", rejectErr)
		}
		return nil
	}

	handlerErr := handler(ctx, msg)
	if handlerErr == nil {
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack delivery: %w", err)
		}
		return nil
	}

	attempts := deliveryAttempts(d) + 1
	log := c.logger.With(
		zap.String("activityId", msg.ID),
		zap.String("action", msg.Action),
		zap.Int("attempts", attempts),
		zap.Error(handlerErr),
	)

	if attempts >= c.maxAttempts {
		log.Error("dead-lettering activity message after repeated failures")
		if err := d.Reject(false); err != nil {
			return fmt.Errorf("failed to dead-letter delivery: %w", err)
		}
		return nil
	}

	if err := republish(ch, queue, d, attempts); err != nil {
		log.Warn("republish failed, requeueing activity message", zap.NamedError("republishError", err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	log.Debug("activity message scheduled for another attempt")
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack republished delivery: %w", err)
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func decodeDelivery(d amqp.Delivery) (ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return ActivityMessage{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return ActivityMessage{}, err
	}
	return msg, nil
}

// deliveryAttempts reads the failure counter stamped by republish. Header
// values arrive as different integer widths depending on the publisher.
func deliveryAttempts(d amqp.Delivery) int {
	switch v := d.Headers[attemptsHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	}
	return 0
}

func republish(ch *amqp.Channel, queue string, d amqp.Delivery, attempts int) error {
	ctx, cancel := context.WithTimeout(context.Background(), republishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx, "", queue, false, false, retryPublishing(d, attempts))
}

func retryPublishing(d amqp.Delivery, attempts int) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempts)

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   d.ContentType,
		DeliveryMode:  amqp.Persistent,
		Priority:      d.Priority,
		CorrelationId: d.CorrelationId,
		MessageId:     d.MessageId,
		Timestamp:     d.Timestamp,
		Type:          d.Type,
		Body:          d.Body,
	}
}
