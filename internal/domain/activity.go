package domain

import "time"

// Action names recorded in the activity log.
const (
	ActionProjectCreated     = "PROJECT_CREATED"
	ActionDatasetCreated     = "DATASET_CREATED"
	ActionBatchCreated       = "BATCH_CREATED"
	ActionItemsAssigned      = "ITEMS_ASSIGNED"
	ActionItemsRemoved       = "ITEMS_REMOVED"
	ActionBatchDeleted       = "BATCH_DELETED"
	ActionItemStarted        = "ITEM_STARTED"
	ActionItemCompleted      = "ITEM_COMPLETED"
	ActionBatchSubmitted     = "BATCH_SUBMITTED"
	ActionBatchCompleted     = "BATCH_COMPLETED"
	ActionItemApproved       = "ITEM_APPROVED"
	ActionItemRejected       = "ITEM_REJECTED"
	ActionReAnnotation       = "REANNOTATION_STARTED"
	ActionItemUploaded       = "ITEM_UPLOADED"
	ActionMarkCreated        = "MARK_CREATED"
	ActionMarkUpdated        = "MARK_UPDATED"
	ActionMarkDeleted        = "MARK_DELETED"
	ActionCountersRecomputed = "COUNTERS_RECOMPUTED"
)

// Target types recorded in the activity log.
const (
	TargetProject    = "project"
	TargetDataset    = "dataset"
	TargetBatch      = "batch"
	TargetWorkItem   = "work_item"
	TargetMembership = "membership"
	TargetLabelMark  = "label_mark"
)

// ActivityEntry is a free-form audit record of a state-changing operation.
type ActivityEntry struct {
	ID         string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Detail     map[string]any
	OccurredAt time.Time
}

// Notifiable reports whether an action is forwarded to the outbound webhook.
func Notifiable(action string) bool {
	switch action {
	case ActionItemRejected, ActionBatchSubmitted, ActionBatchCompleted:
		return true
	}
	return false
}
