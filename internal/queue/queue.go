package queue

import (
	"context"

	"github.com/kursadbilgin/labelflow/internal/domain"
)

// Publisher publishes activity messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg ActivityMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg ActivityMessage) error

// Consumer consumes activity messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// ActivityQueue carries every recorded workflow activity entry.
	ActivityQueue = "workflow.activity"
	// ActivityDLQ receives activity messages rejected by the worker.
	ActivityDLQ = "dlq.workflow.activity"

	activityRoutingKey = "workflow.activity"

	// queueMaxPriority is the RabbitMQ x-max-priority value for the activity queue.
	queueMaxPriority int32 = 2
)

// PriorityValue ranks actions that fan out to the webhook ahead of plain audit entries.
func PriorityValue(action string) uint8 {
	if domain.Notifiable(action) {
		return 2
	}
	return 1
}
