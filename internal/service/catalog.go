package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"github.com/kursadbilgin/labelflow/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultMaxUploadBytes = 20 << 20
	imageURLTTL           = 15 * time.Minute
)

// BlobStore keeps the uploaded image bytes of work items.
type BlobStore interface {
	Put(ctx context.Context, objectKey string, content io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, objectKey string) error
	PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

type CreateProjectInput struct {
	Name        string
	Description string
}

type CreateDatasetInput struct {
	ProjectID string
	Name      string
}

type UploadItemInput struct {
	DatasetID   string
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// CatalogService manages projects, datasets, uploaded work items and the
// read-only catalogs around them.
type CatalogService struct {
	uow            repository.UnitOfWork
	blobs          BlobStore
	activity       repository.ActivityRepository
	recorder       ActivityRecorder
	metrics        *observability.Metrics
	logger         *zap.Logger
	maxUploadBytes int64
	now            func() time.Time
}

func NewCatalogService(
	uow repository.UnitOfWork,
	blobs BlobStore,
	activity repository.ActivityRepository,
	recorder ActivityRecorder,
	metrics *observability.Metrics,
	maxUploadBytes int64,
	logger *zap.Logger,
) (*CatalogService, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CatalogService{
		uow:            uow,
		blobs:          blobs,
		activity:       activity,
		recorder:       recorder,
		metrics:        metrics,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *CatalogService) CreateProject(ctx context.Context, actor domain.Actor, in CreateProjectInput) (*domain.Project, error) {
	if err := requireManager(actor, "create projects"); err != nil {
		return nil, err
	}

	now := s.now()
	project := &domain.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	log := newActivityLog(actor, now)
	err := s.uow.Do(ctx, func(r repository.Repos) error {
		log.reset()
		if err := r.Projects.Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		log.add(domain.ActionProjectCreated, domain.TargetProject, project.ID, map[string]any{
			"name": project.Name,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishActivity(ctx, s.recorder, s.metrics, s.logger, log)
	return project, nil
}

func (s *CatalogService) GetProject(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	projectID, err := parseID("project", projectID)
	if err != nil {
		return nil, err
	}

	project, err := s.uow.Repos().Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, wrapNotFound(err, "project", projectID)
	}
	return project, nil
}

func (s *CatalogService) CreateDataset(ctx context.Context, actor domain.Actor, in CreateDatasetInput) (*domain.Dataset, error) {
	if err := requireManager(actor, "create datasets"); err != nil {
		return nil, err
	}
	projectID, err := parseID("project", in.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dataset := &domain.Dataset{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := dataset.Validate(); err != nil {
		return nil, err
	}

	log := newActivityLog(actor, now)
	err = s.uow.Do(ctx, func(r repository.Repos) error {
		log.reset()
		if _, err := r.Projects.GetByID(ctx, projectID); err != nil {
			return wrapNotFound(err, "project", projectID)
		}
		if err := r.Datasets.Create(ctx, dataset); err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}
		log.add(domain.ActionDatasetCreated, domain.TargetDataset, dataset.ID, map[string]any{
			"projectId": projectID,
			"name":      dataset.Name,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishActivity(ctx, s.recorder, s.metrics, s.logger, log)
	return dataset, nil
}

// UploadItem stores the image bytes and creates a Pending work item for them.
// The stored object is removed again when the item cannot be created.
func (s *CatalogService) UploadItem(ctx context.Context, actor domain.Actor, in UploadItemInput) (*domain.WorkItem, error) {
	if err := requireManager(actor, "upload work items"); err != nil {
		return nil, err
	}
	datasetID, err := parseID("dataset", in.DatasetID)
	if err != nil {
		return nil, err
	}
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", domain.ErrValidation, in.ContentType)
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("%w: upload is empty", domain.ErrValidation)
	}
	if in.Size > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: upload of %d bytes exceeds the %d byte limit", domain.ErrValidation, in.Size, s.maxUploadBytes)
	}
	if in.Content == nil {
		return nil, fmt.Errorf("%w: upload content is required", domain.ErrValidation)
	}

	if _, err := s.uow.Repos().Datasets.GetByID(ctx, datasetID); err != nil {
		return nil, wrapNotFound(err, "dataset", datasetID)
	}

	now := s.now()
	item := &domain.WorkItem{
		ID:          uuid.NewString(),
		DatasetID:   datasetID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   in.Size,
		Status:      domain.ItemStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.ObjectKey = storage.ObjectKey(datasetID, item.ID, fileName)

	if err := s.blobs.Put(ctx, item.ObjectKey, in.Content, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	log := newActivityLog(actor, now)
	err = s.uow.Do(ctx, func(r repository.Repos) error {
		log.reset()
		if err := r.WorkItems.Create(ctx, item); err != nil {
			return fmt.Errorf("failed to create work item: %w", err)
		}
		log.add(domain.ActionItemUploaded, domain.TargetWorkItem, item.ID, map[string]any{
			"datasetId": datasetID,
			"fileName":  fileName,
			"sizeBytes": in.Size,
		})
		return nil
	})
	if err != nil {
		if removeErr := s.blobs.Remove(ctx, item.ObjectKey); removeErr != nil {
			observability.WithContextLogger(s.logger, ctx).Warn("failed to remove orphaned upload",
				zap.String("objectKey", item.ObjectKey),
				zap.Error(removeErr),
			)
		}
		return nil, err
	}

	publishActivity(ctx, s.recorder, s.metrics, s.logger, log)
	return item, nil
}

// ImageURL returns a short-lived download URL for a work item's image.
func (s *CatalogService) ImageURL(ctx context.Context, actor domain.Actor, itemID string) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	itemID, err := parseID("work item", itemID)
	if err != nil {
		return "", err
	}

	item, err := s.uow.Repos().WorkItems.GetByID(ctx, itemID)
	if err != nil {
		return "", wrapNotFound(err, "work item", itemID)
	}
	if item.ObjectKey == "" {
		return "", fmt.Errorf("%w: work item %s has no stored image", domain.ErrNotFound, itemID)
	}
	return s.blobs.PresignedURL(ctx, item.ObjectKey, imageURLTTL)
}

func (s *CatalogService) ListDefectCategories(ctx context.Context, actor domain.Actor) ([]domain.DefectCategory, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.uow.Repos().DefectCategories.List(ctx)
}

// ListActivity returns the most recent activity entries recorded for a target.
func (s *CatalogService) ListActivity(
	ctx context.Context,
	actor domain.Actor,
	targetType, targetID string,
	limit int,
) ([]domain.ActivityEntry, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if s.activity == nil {
		return nil, fmt.Errorf("activity log is not configured")
	}
	switch targetType {
	case domain.TargetProject, domain.TargetDataset, domain.TargetBatch,
		domain.TargetWorkItem, domain.TargetMembership, domain.TargetLabelMark:
	default:
		return nil, fmt.Errorf("%w: unknown target type %q", domain.ErrValidation, targetType)
	}
	targetID, err := parseID(targetType, targetID)
	if err != nil {
		return nil, err
	}
	return s.activity.ListByTarget(ctx, targetType, targetID, limit)
}
