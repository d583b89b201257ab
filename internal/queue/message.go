package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
)

// ActivityMessage is the broker payload for one activity entry.
type ActivityMessage struct {
	ID            string         `json:"id"`
	CorrelationID string         `json:"correlationId,omitempty"`
	ActorID       string         `json:"actorId"`
	Action        string         `json:"action"`
	TargetType    string         `json:"targetType"`
	TargetID      string         `json:"targetId"`
	Detail        map[string]any `json:"detail,omitempty"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

func NewActivityMessage(entry domain.ActivityEntry, correlationID string) ActivityMessage {
	return ActivityMessage{
		ID:            entry.ID,
		CorrelationID: correlationID,
		ActorID:       entry.ActorID,
		Action:        entry.Action,
		TargetType:    entry.TargetType,
		TargetID:      entry.TargetID,
		Detail:        entry.Detail,
		OccurredAt:    entry.OccurredAt,
	}
}

func (m ActivityMessage) Entry() domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:         m.ID,
		ActorID:    m.ActorID,
		Action:     m.Action,
		TargetType: m.TargetType,
		TargetID:   m.TargetID,
		Detail:     m.Detail,
		OccurredAt: m.OccurredAt,
	}
}

func (m ActivityMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(m.ActorID) == "" {
		return fmt.Errorf("actorId is required")
	}
	if strings.TrimSpace(m.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(m.TargetType) == "" || strings.TrimSpace(m.TargetID) == "" {
		return fmt.Errorf("target is required")
	}
	if m.OccurredAt.IsZero() {
		return fmt.Errorf("occurredAt is required")
	}
	return nil
}
