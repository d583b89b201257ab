package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"gorm.io/gorm"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// StatusCount is one row of a GROUP BY status aggregate.
type StatusCount struct {
	Status string `gorm:"column:status"`
	Count  int    `gorm:"column:count"`
}

type ItemListParams struct {
	DatasetID *string
	Status    *domain.ItemStatus
	Page      int
	PageSize  int
}

// BatchCursor marks the last batch of a keyset page. Batches are ordered by
// created_at then id, both descending.
type BatchCursor struct {
	CreatedAt time.Time
	ID        string
}

// BatchListParams filters a batch listing. When After is set the listing
// continues after that batch and Page is ignored.
type BatchListParams struct {
	ProjectID  *string
	AssigneeID *string
	Status     *domain.BatchStatus
	After      *BatchCursor
	Page       int
	PageSize   int
}

type ProjectRepository interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
}

type DatasetRepository interface {
	Create(ctx context.Context, d *domain.Dataset) error
	GetByID(ctx context.Context, id string) (*domain.Dataset, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Dataset, error)
}

// DefectCategoryRepository is the defect-category catalog.
type DefectCategoryRepository interface {
	List(ctx context.Context) ([]domain.DefectCategory, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.DefectCategory, error)
}

type WorkItemRepository interface {
	Create(ctx context.Context, item *domain.WorkItem) error
	GetByID(ctx context.Context, id string) (*domain.WorkItem, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.WorkItem, error)
	List(ctx context.Context, params ItemListParams) ([]domain.WorkItem, int64, error)
	// TransitionStatus moves an item only if it is still in the observed status.
	// It returns domain.ErrConflict when the item has moved on.
	TransitionStatus(ctx context.Context, id string, from, to domain.ItemStatus) error
	BulkUpdateStatus(ctx context.Context, ids []string, to domain.ItemStatus) (int64, error)
	CountByStatus(ctx context.Context, projectID string) ([]StatusCount, error)
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	// LockByID loads a batch with a row lock held until the surrounding transaction ends.
	LockByID(ctx context.Context, id string) (*domain.Batch, error)
	List(ctx context.Context, params BatchListParams) ([]domain.Batch, int64, error)
	Update(ctx context.Context, b *domain.Batch) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, projectID string) ([]StatusCount, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, m *domain.Membership) error
	GetByID(ctx context.Context, id string) (*domain.Membership, error)
	GetByBatchAndItem(ctx context.Context, batchID, workItemID string) (*domain.Membership, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.Membership, error)
	ListByWorkItem(ctx context.Context, workItemID string) ([]domain.Membership, error)
	CountByBatch(ctx context.Context, batchID string) (total int, completed int, err error)
	Update(ctx context.Context, m *domain.Membership) error
	DeleteByIDs(ctx context.Context, ids []string) error
}

type LabelMarkRepository interface {
	Create(ctx context.Context, m *domain.LabelMark) error
	GetByID(ctx context.Context, id string) (*domain.LabelMark, error)
	Update(ctx context.Context, m *domain.LabelMark) error
	Delete(ctx context.Context, id string) error
	ListByWorkItem(ctx context.Context, workItemID string) ([]domain.LabelMark, error)
	DeleteByWorkItems(ctx context.Context, workItemIDs []string) (int64, error)
}

type VerdictRepository interface {
	// Create appends a verdict and assigns the next per-item sequence number.
	Create(ctx context.Context, v *domain.ReviewVerdict) error
	ListByWorkItem(ctx context.Context, workItemID string) ([]domain.ReviewVerdict, error)
	LatestByWorkItems(ctx context.Context, workItemIDs []string) (map[string]domain.ReviewVerdict, error)
}

type ActivityRepository interface {
	// Create stores an entry; storing the same entry id twice is a no-op.
	Create(ctx context.Context, e *domain.ActivityEntry) error
	ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.ActivityEntry, error)
}

// Repos bundles the repositories that participate in one unit of work.
type Repos struct {
	Projects         ProjectRepository
	Datasets         DatasetRepository
	DefectCategories DefectCategoryRepository
	WorkItems        WorkItemRepository
	Batches          BatchRepository
	Memberships      MembershipRepository
	LabelMarks       LabelMarkRepository
	Verdicts         VerdictRepository
}

// UnitOfWork runs fn with repositories bound to a single transaction. All
// writes made through r commit together, or none do when fn returns an error.
type UnitOfWork interface {
	Repos() Repos
	Do(ctx context.Context, fn func(r Repos) error) error
}

func NewGormRepos(db *gorm.DB) Repos {
	return Repos{
		Projects:         NewGormProjectRepo(db),
		Datasets:         NewGormDatasetRepo(db),
		DefectCategories: NewGormDefectCategoryRepo(db),
		WorkItems:        NewGormWorkItemRepo(db),
		Batches:          NewGormBatchRepo(db),
		Memberships:      NewGormMembershipRepo(db),
		LabelMarks:       NewGormLabelMarkRepo(db),
		Verdicts:         NewGormVerdictRepo(db),
	}
}

type GormUnitOfWork struct {
	db    *gorm.DB
	repos Repos
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db, repos: NewGormRepos(db)}
}

func (u *GormUnitOfWork) Repos() Repos {
	return u.repos
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(r Repos) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormRepos(tx))
	})
	if IsTransactionConflict(err) {
		return fmt.Errorf("%w: the request conflicted with a concurrent update, retry it", domain.ErrConflict)
	}
	return err
}

func pageBounds(page, pageSize int) (int, int) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, min(pageSize, maxPageSize)
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// IsTransactionConflict reports whether postgres aborted a transaction to
// break a deadlock or a serialization conflict.
func IsTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrConflict) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateDeadlockDetected || pgErr.Code == sqlStateSerializationFailure
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock detected") || strings.Contains(msg, "could not serialize access")
}
