package domain

import "time"

// WorkItem is a single unit of content to be labeled, e.g. one image.
type WorkItem struct {
	ID          string
	DatasetID   string
	FileName    string
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	Status      ItemStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
