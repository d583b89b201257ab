package domain

import (
	"fmt"
	"strings"
	"time"
)

// Batch is a set of WorkItems assigned as one unit to one worker.
type Batch struct {
	ID             string
	ProjectID      string
	Name           string
	AssigneeID     string
	AssignerID     string
	Status         BatchStatus
	TotalItems     int
	CompletedItems int
	DueAt          *time.Time
	SubmittedAt    *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Batch) Validate() error {
	if strings.TrimSpace(b.ProjectID) == "" {
		return fmt.Errorf("%w: project id is required", ErrValidation)
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: batch name is required", ErrValidation)
	}
	if strings.TrimSpace(b.AssigneeID) == "" {
		return fmt.Errorf("%w: assignee id is required", ErrValidation)
	}
	if len(b.AssigneeID) > MaxActorIDLength {
		return fmt.Errorf("%w: assignee id exceeds %d characters", ErrValidation, MaxActorIDLength)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	return nil
}

// ProgressPercent is completedItems/totalItems*100, or 0 for an empty batch.
func (b *Batch) ProgressPercent() float64 {
	if b.TotalItems <= 0 {
		return 0
	}
	return float64(b.CompletedItems) / float64(b.TotalItems) * 100
}

// CheckCounters verifies 0 <= completedItems <= totalItems.
func (b *Batch) CheckCounters() error {
	if b.CompletedItems < 0 || b.TotalItems < 0 || b.CompletedItems > b.TotalItems {
		return fmt.Errorf("batch %s counters out of range: completed=%d total=%d", b.ID, b.CompletedItems, b.TotalItems)
	}
	return nil
}

// Membership links one WorkItem to one Batch and tracks its progress there.
type Membership struct {
	ID          string
	BatchID     string
	WorkItemID  string
	Status      MembershipStatus
	AssignedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}
