package repository

import (
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
)

// ProjectModel is the persistence model for the projects table.
type ProjectModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ProjectModel) TableName() string {
	return "projects"
}

// DatasetModel is the persistence model for the datasets table.
type DatasetModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ProjectID string `gorm:"type:uuid;not null;index"`
	Name      string `gorm:"type:varchar(200);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DatasetModel) TableName() string {
	return "datasets"
}

// WorkItemModel is the persistence model for the work_items table.
type WorkItemModel struct {
	ID          string            `gorm:"type:uuid;primaryKey"`
	DatasetID   string            `gorm:"type:uuid;not null"`
	FileName    string            `gorm:"type:varchar(255);not null"`
	ObjectKey   string            `gorm:"type:varchar(512)"`
	ContentType string            `gorm:"type:varchar(100)"`
	SizeBytes   int64             `gorm:"not null;default:0"`
	Status      domain.ItemStatus `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (WorkItemModel) TableName() string {
	return "work_items"
}

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	ProjectID      string             `gorm:"type:uuid;not null"`
	Name           string             `gorm:"type:varchar(200);not null"`
	AssigneeID     string             `gorm:"type:varchar(64);not null"`
	AssignerID     string             `gorm:"type:varchar(64);not null"`
	Status         domain.BatchStatus `gorm:"type:varchar(20);not null"`
	TotalItems     int                `gorm:"not null;default:0"`
	CompletedItems int                `gorm:"not null;default:0"`
	DueAt          *time.Time         `gorm:"type:timestamptz"`
	SubmittedAt    *time.Time         `gorm:"type:timestamptz"`
	CompletedAt    *time.Time         `gorm:"type:timestamptz"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// MembershipModel is the persistence model for the memberships table.
type MembershipModel struct {
	ID          string                  `gorm:"type:uuid;primaryKey"`
	BatchID     string                  `gorm:"type:uuid;not null"`
	WorkItemID  string                  `gorm:"type:uuid;not null"`
	Status      domain.MembershipStatus `gorm:"type:varchar(20);not null"`
	AssignedAt  time.Time               `gorm:"not null"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (MembershipModel) TableName() string {
	return "memberships"
}

// LabelMarkModel is the persistence model for the label_marks table.
type LabelMarkModel struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	WorkItemID string         `gorm:"type:uuid;not null;index"`
	CreatedBy  string         `gorm:"type:varchar(64);not null"`
	ClassName  string         `gorm:"type:varchar(100);not null"`
	Shape      domain.Shape   `gorm:"type:varchar(16);not null"`
	Points     []domain.Point `gorm:"serializer:json;type:jsonb;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (LabelMarkModel) TableName() string {
	return "label_marks"
}

// DefectCategoryModel is the persistence model for the defect_categories table.
type DefectCategoryModel struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (DefectCategoryModel) TableName() string {
	return "defect_categories"
}

// ReviewVerdictModel is the persistence model for the review_verdicts table.
type ReviewVerdictModel struct {
	ID         string                `gorm:"type:uuid;primaryKey"`
	WorkItemID string                `gorm:"type:uuid;not null"`
	ReviewerID string                `gorm:"type:varchar(64);not null"`
	Sequence   int                   `gorm:"not null"`
	Decision   domain.Decision       `gorm:"type:varchar(10);not null"`
	Feedback   *string               `gorm:"type:text"`
	Defects    []DefectCategoryModel `gorm:"many2many:review_verdict_defects;joinForeignKey:VerdictID;joinReferences:DefectCategoryID"`
	CreatedAt  time.Time             `gorm:"index"`
}

func (ReviewVerdictModel) TableName() string {
	return "review_verdicts"
}

// ActivityLogModel is the persistence model for the activity_logs table.
type ActivityLogModel struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	ActorID    string         `gorm:"type:varchar(64);not null"`
	Action     string         `gorm:"type:varchar(40);not null"`
	TargetType string         `gorm:"type:varchar(30);not null"`
	TargetID   string         `gorm:"type:varchar(64);not null"`
	Detail     map[string]any `gorm:"serializer:json;type:jsonb"`
	OccurredAt time.Time      `gorm:"not null"`
	CreatedAt  time.Time
}

func (ActivityLogModel) TableName() string {
	return "activity_logs"
}

func projectModelFromDomain(p *domain.Project) *ProjectModel {
	if p == nil {
		return nil
	}
	return &ProjectModel{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func projectModelToDomain(m *ProjectModel) *domain.Project {
	if m == nil {
		return nil
	}
	return &domain.Project{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func datasetModelFromDomain(d *domain.Dataset) *DatasetModel {
	if d == nil {
		return nil
	}
	return &DatasetModel{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func datasetModelToDomain(m *DatasetModel) *domain.Dataset {
	if m == nil {
		return nil
	}
	return &domain.Dataset{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func workItemModelFromDomain(w *domain.WorkItem) *WorkItemModel {
	if w == nil {
		return nil
	}
	return &WorkItemModel{
		ID:          w.ID,
		DatasetID:   w.DatasetID,
		FileName:    w.FileName,
		ObjectKey:   w.ObjectKey,
		ContentType: w.ContentType,
		SizeBytes:   w.SizeBytes,
		Status:      w.Status,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func workItemModelToDomain(m *WorkItemModel) *domain.WorkItem {
	if m == nil {
		return nil
	}
	return &domain.WorkItem{
		ID:          m.ID,
		DatasetID:   m.DatasetID,
		FileName:    m.FileName,
		ObjectKey:   m.ObjectKey,
		ContentType: m.ContentType,
		SizeBytes:   m.SizeBytes,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}
	return &BatchModel{
		ID:             b.ID,
		ProjectID:      b.ProjectID,
		Name:           b.Name,
		AssigneeID:     b.AssigneeID,
		AssignerID:     b.AssignerID,
		Status:         b.Status,
		TotalItems:     b.TotalItems,
		CompletedItems: b.CompletedItems,
		DueAt:          b.DueAt,
		SubmittedAt:    b.SubmittedAt,
		CompletedAt:    b.CompletedAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}
	return &domain.Batch{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		Name:           m.Name,
		AssigneeID:     m.AssigneeID,
		AssignerID:     m.AssignerID,
		Status:         m.Status,
		TotalItems:     m.TotalItems,
		CompletedItems: m.CompletedItems,
		DueAt:          m.DueAt,
		SubmittedAt:    m.SubmittedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func membershipModelFromDomain(ms *domain.Membership) *MembershipModel {
	if ms == nil {
		return nil
	}
	return &MembershipModel{
		ID:          ms.ID,
		BatchID:     ms.BatchID,
		WorkItemID:  ms.WorkItemID,
		Status:      ms.Status,
		AssignedAt:  ms.AssignedAt,
		StartedAt:   ms.StartedAt,
		CompletedAt: ms.CompletedAt,
	}
}

func membershipModelToDomain(m *MembershipModel) *domain.Membership {
	if m == nil {
		return nil
	}
	return &domain.Membership{
		ID:          m.ID,
		BatchID:     m.BatchID,
		WorkItemID:  m.WorkItemID,
		Status:      m.Status,
		AssignedAt:  m.AssignedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

func labelMarkModelFromDomain(l *domain.LabelMark) *LabelMarkModel {
	if l == nil {
		return nil
	}
	return &LabelMarkModel{
		ID:         l.ID,
		WorkItemID: l.WorkItemID,
		CreatedBy:  l.CreatedBy,
		ClassName:  l.ClassName,
		Shape:      l.Shape,
		Points:     l.Points,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func labelMarkModelToDomain(m *LabelMarkModel) *domain.LabelMark {
	if m == nil {
		return nil
	}
	return &domain.LabelMark{
		ID:         m.ID,
		WorkItemID: m.WorkItemID,
		CreatedBy:  m.CreatedBy,
		ClassName:  m.ClassName,
		Shape:      m.Shape,
		Points:     m.Points,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func defectCategoryModelToDomain(m *DefectCategoryModel) domain.DefectCategory {
	return domain.DefectCategory{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

func verdictModelFromDomain(v *domain.ReviewVerdict) *ReviewVerdictModel {
	if v == nil {
		return nil
	}
	defects := make([]DefectCategoryModel, 0, len(v.DefectCategories))
	for _, c := range v.DefectCategories {
		defects = append(defects, DefectCategoryModel{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			CreatedAt:   c.CreatedAt,
		})
	}
	return &ReviewVerdictModel{
		ID:         v.ID,
		WorkItemID: v.WorkItemID,
		ReviewerID: v.ReviewerID,
		Sequence:   v.Sequence,
		Decision:   v.Decision,
		Feedback:   v.Feedback,
		Defects:    defects,
		CreatedAt:  v.CreatedAt,
	}
}

func verdictModelToDomain(m *ReviewVerdictModel) *domain.ReviewVerdict {
	if m == nil {
		return nil
	}
	categories := make([]domain.DefectCategory, 0, len(m.Defects))
	for i := range m.Defects {
		categories = append(categories, defectCategoryModelToDomain(&m.Defects[i]))
	}
	return &domain.ReviewVerdict{
		ID:               m.ID,
		WorkItemID:       m.WorkItemID,
		ReviewerID:       m.ReviewerID,
		Sequence:         m.Sequence,
		Decision:         m.Decision,
		Feedback:         m.Feedback,
		DefectCategories: categories,
		CreatedAt:        m.CreatedAt,
	}
}

func activityModelFromDomain(e *domain.ActivityEntry) *ActivityLogModel {
	if e == nil {
		return nil
	}
	return &ActivityLogModel{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Detail:     e.Detail,
		OccurredAt: e.OccurredAt,
	}
}

func activityModelToDomain(m *ActivityLogModel) *domain.ActivityEntry {
	if m == nil {
		return nil
	}
	return &domain.ActivityEntry{
		ID:         m.ID,
		ActorID:    m.ActorID,
		Action:     m.Action,
		TargetType: m.TargetType,
		TargetID:   m.TargetID,
		Detail:     m.Detail,
		OccurredAt: m.OccurredAt,
	}
}
