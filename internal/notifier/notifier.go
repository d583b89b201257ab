package notifier

import (
	"context"

	"github.com/kursadbilgin/labelflow/internal/domain"
)

// Notifier delivers workflow events to an external subscriber.
type Notifier interface {
	Notify(ctx context.Context, entry domain.ActivityEntry) (*Receipt, error)
}

// Receipt stores delivery metadata for logging.
type Receipt struct {
	StatusCode int
	RequestID  string
}
