package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueueNames(t *testing.T) {
	if ActivityQueue != "workflow.activity" {
		t.Fatalf("ActivityQueue = %s, want workflow.activity", ActivityQueue)
	}
	if ActivityDLQ != "dlq."+ActivityQueue {
		t.Fatalf("ActivityDLQ = %s, want dlq.%s", ActivityDLQ, ActivityQueue)
	}
}

func TestPriorityValue(t *testing.T) {
	tests := []struct {
		name   string
		action string
		want   uint8
	}{
		{name: "rejection", action: domain.ActionItemRejected, want: 2},
		{name: "batch submitted", action: domain.ActionBatchSubmitted, want: 2},
		{name: "batch completed", action: domain.ActionBatchCompleted, want: 2},
		{name: "item started", action: domain.ActionItemStarted, want: 1},
		{name: "unknown", action: "SOMETHING_ELSE", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriorityValue(tt.action); got != tt.want {
				t.Fatalf("PriorityValue(%q) = %d, want %d", tt.action, got, tt.want)
			}
		})
	}
}

func TestActivityMessageValidate(t *testing.T) {
	valid := ActivityMessage{
		ID:         "a1",
		ActorID:    "manager-1",
		Action:     domain.ActionItemsAssigned,
		TargetType: domain.TargetBatch,
		TargetID:   "b1",
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(m *ActivityMessage)
	}{
		{name: "missing id", mutate: func(m *ActivityMessage) { m.ID = "" }},
		{name: "missing actor", mutate: func(m *ActivityMessage) { m.ActorID = " " }},
		{name: "missing action", mutate: func(m *ActivityMessage) { m.Action = "" }},
		{name: "missing target id", mutate: func(m *ActivityMessage) { m.TargetID = "" }},
		{name: "missing timestamp", mutate: func(m *ActivityMessage) { m.OccurredAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid
			tt.mutate(&msg)
			if err := msg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

type capturePublisher struct {
	queue string
	msg   ActivityMessage
	err   error
}

func (p *capturePublisher) Publish(_ context.Context, queue string, msg ActivityMessage) error {
	p.queue = queue
	p.msg = msg
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func TestActivityRecorderPublishesToActivityQueue(t *testing.T) {
	pub := &capturePublisher{}
	recorder := NewActivityRecorder(pub)

	entry := domain.ActivityEntry{
		ID:         "a2",
		ActorID:    "reviewer-1",
		Action:     domain.ActionItemRejected,
		TargetType: domain.TargetWorkItem,
		TargetID:   "item-1",
		Detail:     map[string]any{"feedback": "loose box"},
		OccurredAt: time.Unix(1_700_000_100, 0).UTC(),
	}

	ctx := observability.WithCorrelationID(context.Background(), "cid-42")
	if err := recorder.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if pub.queue != ActivityQueue {
		t.Fatalf("queue = %s, want %s", pub.queue, ActivityQueue)
	}
	if pub.msg.CorrelationID != "cid-42" {
		t.Fatalf("correlationId = %q, want cid-42", pub.msg.CorrelationID)
	}
	got := pub.msg.Entry()
	if got.ID != entry.ID || got.Action != entry.Action || got.TargetID != entry.TargetID {
		t.Fatalf("entry = %+v, want %+v", got, entry)
	}
}

func TestActivityRecorderPropagatesPublishError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	recorder := NewActivityRecorder(pub)

	err := recorder.Record(context.Background(), domain.ActivityEntry{ID: "a3"})
	if err == nil {
		t.Fatal("expected publish error")
	}
}

func TestDeliveryAttempts(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{name: "no headers", headers: nil, want: 0},
		{name: "int32 counter", headers: amqp.Table{attemptsHeader: int32(3)}, want: 3},
		{name: "int64 counter", headers: amqp.Table{attemptsHeader: int64(7)}, want: 7},
		{name: "unexpected type", headers: amqp.Table{attemptsHeader: "4"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deliveryAttempts(amqp.Delivery{Headers: tt.headers}); got != tt.want {
				t.Fatalf("deliveryAttempts() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRetryPublishingKeepsMessageIdentity(t *testing.T) {
	d := amqp.Delivery{
		Headers:       amqp.Table{"x-trace": "abc", attemptsHeader: int32(1)},
		ContentType:   "application/json",
		Priority:      2,
		CorrelationId: "cid-7",
		MessageId:     "a-9",
		Type:          domain.ActionBatchSubmitted,
		Body:          []byte(`{"id":"a-9"}`),
	}

	p := retryPublishing(d, 2)
	if p.Headers[attemptsHeader] != int32(2) {
		t.Fatalf("attempts header = %v, want 2", p.Headers[attemptsHeader])
	}
	if p.Headers["x-trace"] != "abc" {
		t.Fatalf("existing headers were dropped: %v", p.Headers)
	}
	if d.Headers[attemptsHeader] != int32(1) {
		t.Fatal("original delivery headers must not be mutated")
	}
	if p.MessageId != "a-9" || p.CorrelationId != "cid-7" || p.Priority != 2 || p.DeliveryMode != amqp.Persistent {
		t.Fatalf("publishing = %+v", p)
	}
	if string(p.Body) != string(d.Body) {
		t.Fatalf("body = %s, want %s", p.Body, d.Body)
	}
}

func TestActivityPublishing(t *testing.T) {
	publishedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	msg := ActivityMessage{
		ID:            "a-11",
		CorrelationID: "cid-11",
		ActorID:       "reviewer-1",
		Action:        domain.ActionItemRejected,
		TargetType:    domain.TargetWorkItem,
		TargetID:      "item-4",
		OccurredAt:    publishedAt.Add(-time.Second),
	}

	p, err := activityPublishing(msg, publishedAt)
	if err != nil {
		t.Fatalf("activityPublishing() error = %v", err)
	}
	if p.MessageId != "a-11" || p.CorrelationId != "cid-11" || p.Type != domain.ActionItemRejected {
		t.Fatalf("publishing identity = %+v", p)
	}
	if p.DeliveryMode != amqp.Persistent || p.ContentType != "application/json" || !p.Timestamp.Equal(publishedAt) {
		t.Fatalf("publishing properties = %+v", p)
	}
	if p.Priority != PriorityValue(domain.ActionItemRejected) {
		t.Fatalf("priority = %d", p.Priority)
	}

	decoded, err := decodeDelivery(amqp.Delivery{Body: p.Body})
	if err != nil {
		t.Fatalf("decodeDelivery() error = %v", err)
	}
	if decoded.TargetID != "item-4" || decoded.ActorID != "reviewer-1" {
		t.Fatalf("decoded = %+v", decoded)
	}

	if _, err := activityPublishing(ActivityMessage{ID: "a-12"}, publishedAt); err == nil {
		t.Fatal("expected validation error for incomplete message")
	}
}

func TestRabbitMQPublisherRequiresClient(t *testing.T) {
	var p *RabbitMQPublisher
	if err := p.Publish(context.Background(), ActivityQueue, ActivityMessage{}); err == nil {
		t.Fatal("expected error for nil publisher")
	}
	if err := NewRabbitMQPublisher(nil).Publish(context.Background(), ActivityQueue, ActivityMessage{}); err == nil {
		t.Fatal("expected error for publisher without client")
	}
}

func TestDecodeDeliveryRejectsInvalidPayloads(t *testing.T) {
	if _, err := decodeDelivery(amqp.Delivery{Body: []byte("{not json")}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if _, err := decodeDelivery(amqp.Delivery{Body: []byte(`{"id":"a-1"}`)}); err == nil {
		t.Fatal("expected validation error for incomplete message")
	}
}

func TestNewRabbitMQConsumerDefaults(t *testing.T) {
	c := NewRabbitMQConsumer(nil, 0, 0, nil)
	if c.prefetch != 1 || c.maxAttempts != defaultMaxAttempts || c.logger == nil {
		t.Fatalf("consumer defaults = prefetch %d, maxAttempts %d", c.prefetch, c.maxAttempts)
	}
	if err := c.Consume(context.Background(), ActivityQueue, func(context.Context, ActivityMessage) error { return nil }); err == nil {
		t.Fatal("expected error for consumer without a broker client")
	}
}
