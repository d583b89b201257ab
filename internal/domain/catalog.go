package domain

import (
	"fmt"
	"strings"
	"time"
)

// Project groups datasets and the batches that label them.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is required", ErrValidation)
	}
	return nil
}

// Dataset is the pool a WorkItem is drawn from.
type Dataset struct {
	ID        string
	ProjectID string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Dataset) Validate() error {
	if strings.TrimSpace(d.ProjectID) == "" {
		return fmt.Errorf("%w: project id is required", ErrValidation)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: dataset name is required", ErrValidation)
	}
	return nil
}

// DefectCategory classifies why an item was rejected.
type DefectCategory struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}
