package handler

import (
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/service"
)

type batchResponse struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"projectId"`
	Name            string     `json:"name"`
	AssigneeID      string     `json:"assigneeId"`
	AssignerID      string     `json:"assignerId"`
	Status          string     `json:"status"`
	StatusLabel     string     `json:"statusLabel"`
	TotalItems      int        `json:"totalItems"`
	CompletedItems  int        `json:"completedItems"`
	ProgressPercent float64    `json:"progressPercent"`
	DueAt           *time.Time `json:"dueAt,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type skippedItemResponse struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type assignmentResponse struct {
	AssignedCount int                   `json:"assignedCount"`
	SkippedCount  int                   `json:"skippedCount"`
	SkippedItems  []skippedItemResponse `json:"skippedItems"`
}

type createBatchResponse struct {
	Batch      batchResponse      `json:"batch"`
	Assignment assignmentResponse `json:"assignment"`
}

type removalResponse struct {
	RemovedCount int                   `json:"removedCount"`
	SkippedCount int                   `json:"skippedCount"`
	SkippedItems []skippedItemResponse `json:"skippedItems"`
}

type membershipResponse struct {
	ID          string     `json:"id"`
	BatchID     string     `json:"batchId"`
	WorkItemID  string     `json:"workItemId"`
	Status      string     `json:"status"`
	StatusLabel string     `json:"statusLabel"`
	AssignedAt  time.Time  `json:"assignedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type membershipDetailResponse struct {
	membershipResponse
	ItemStatus string `json:"itemStatus"`
	FileName   string `json:"fileName"`
	Consistent bool   `json:"consistent"`
}

type batchDetailResponse struct {
	Batch        batchResponse              `json:"batch"`
	Memberships  []membershipDetailResponse `json:"memberships"`
	CounterIssue string                     `json:"counterIssue,omitempty"`
}

type workItemResponse struct {
	ID          string    `json:"id"`
	DatasetID   string    `json:"datasetId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"statusLabel"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type labelMarkResponse struct {
	ID         string         `json:"id"`
	WorkItemID string         `json:"workItemId"`
	CreatedBy  string         `json:"createdBy"`
	ClassName  string         `json:"className"`
	Shape      string         `json:"shape"`
	Points     []domain.Point `json:"points"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

type verdictResponse struct {
	ID               string    `json:"id"`
	WorkItemID       string    `json:"workItemId"`
	ReviewerID       string    `json:"reviewerId"`
	Sequence         int       `json:"sequence"`
	Decision         string    `json:"decision"`
	Feedback         *string   `json:"feedback,omitempty"`
	DefectCategories []string  `json:"defectCategories"`
	CreatedAt        time.Time `json:"createdAt"`
}

type itemDetailResponse struct {
	Item       workItemResponse    `json:"item"`
	Membership *membershipResponse `json:"membership,omitempty"`
	Marks      []labelMarkResponse `json:"marks"`
	Verdicts   []verdictResponse   `json:"verdicts"`
}

type reviewResponse struct {
	Verdict           verdictResponse  `json:"verdict"`
	Item              workItemResponse `json:"item"`
	CompletedBatchIDs []string         `json:"completedBatchIds"`
}

type rejectedItemResponse struct {
	MembershipID     string           `json:"membershipId"`
	WorkItem         workItemResponse `json:"workItem"`
	Feedback         string           `json:"feedback"`
	DefectCategories []string         `json:"defectCategories"`
	ReviewerID       string           `json:"reviewerId"`
	RejectedAt       time.Time        `json:"rejectedAt"`
}

type projectStatsResponse struct {
	ProjectID       string         `json:"projectId"`
	TotalItems      int            `json:"totalItems"`
	ItemsByStatus   map[string]int `json:"itemsByStatus"`
	BatchesByStatus map[string]int `json:"batchesByStatus"`
	ApprovedItems   int            `json:"approvedItems"`
	RejectedItems   int            `json:"rejectedItems"`
	ProgressPercent float64        `json:"progressPercent"`
	ApprovalRate    float64        `json:"approvalRate"`
}

type listBatchesResponse struct {
	Data []batchResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listItemsResponse struct {
	Data []workItemResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type datasetResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type defectCategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type activityResponse struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actorId"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}
	return batchResponse{
		ID:              b.ID,
		ProjectID:       b.ProjectID,
		Name:            b.Name,
		AssigneeID:      b.AssigneeID,
		AssignerID:      b.AssignerID,
		Status:          b.Status.String(),
		StatusLabel:     b.Status.Label(),
		TotalItems:      b.TotalItems,
		CompletedItems:  b.CompletedItems,
		ProgressPercent: b.ProgressPercent(),
		DueAt:           b.DueAt,
		SubmittedAt:     b.SubmittedAt,
		CompletedAt:     b.CompletedAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBatchResponses(batches []domain.Batch) []batchResponse {
	responses := make([]batchResponse, 0, len(batches))
	for i := range batches {
		responses = append(responses, toBatchResponse(&batches[i]))
	}
	return responses
}

func toSkippedResponses(skipped []service.SkippedItem) []skippedItemResponse {
	responses := make([]skippedItemResponse, 0, len(skipped))
	for _, s := range skipped {
		responses = append(responses, skippedItemResponse{ID: s.ID, Code: string(s.Code), Reason: s.Reason})
	}
	return responses
}

func toAssignmentResponse(r *service.AssignmentResult) assignmentResponse {
	if r == nil {
		return assignmentResponse{SkippedItems: []skippedItemResponse{}}
	}
	return assignmentResponse{
		AssignedCount: r.AssignedCount,
		SkippedCount:  r.SkippedCount,
		SkippedItems:  toSkippedResponses(r.SkippedItems),
	}
}

func toMembershipResponse(m *domain.Membership) membershipResponse {
	if m == nil {
		return membershipResponse{}
	}
	return membershipResponse{
		ID:          m.ID,
		BatchID:     m.BatchID,
		WorkItemID:  m.WorkItemID,
		Status:      m.Status.String(),
		StatusLabel: m.Status.Label(),
		AssignedAt:  m.AssignedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

func toBatchDetailResponse(d *service.BatchDetail) batchDetailResponse {
	memberships := make([]membershipDetailResponse, 0, len(d.Memberships))
	for i := range d.Memberships {
		md := d.Memberships[i]
		memberships = append(memberships, membershipDetailResponse{
			membershipResponse: toMembershipResponse(&md.Membership),
			ItemStatus:         md.ItemStatus.String(),
			FileName:           md.FileName,
			Consistent:         md.Consistent,
		})
	}
	return batchDetailResponse{
		Batch:        toBatchResponse(&d.Batch),
		Memberships:  memberships,
		CounterIssue: d.CounterIssue,
	}
}

func toWorkItemResponse(item *domain.WorkItem) workItemResponse {
	if item == nil {
		return workItemResponse{}
	}
	return workItemResponse{
		ID:          item.ID,
		DatasetID:   item.DatasetID,
		FileName:    item.FileName,
		ContentType: item.ContentType,
		SizeBytes:   item.SizeBytes,
		Status:      item.Status.String(),
		StatusLabel: item.Status.Label(),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toWorkItemResponses(items []domain.WorkItem) []workItemResponse {
	responses := make([]workItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, toWorkItemResponse(&items[i]))
	}
	return responses
}

func toLabelMarkResponse(m *domain.LabelMark) labelMarkResponse {
	if m == nil {
		return labelMarkResponse{}
	}
	points := m.Points
	if points == nil {
		points = []domain.Point{}
	}
	return labelMarkResponse{
		ID:         m.ID,
		WorkItemID: m.WorkItemID,
		CreatedBy:  m.CreatedBy,
		ClassName:  m.ClassName,
		Shape:      string(m.Shape),
		Points:     points,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toVerdictResponse(v *domain.ReviewVerdict) verdictResponse {
	return verdictResponse{
		ID:               v.ID,
		WorkItemID:       v.WorkItemID,
		ReviewerID:       v.ReviewerID,
		Sequence:         v.Sequence,
		Decision:         v.Decision.String(),
		Feedback:         v.Feedback,
		DefectCategories: v.CategoryNames(),
		CreatedAt:        v.CreatedAt,
	}
}

func toItemDetailResponse(d *service.ItemDetail) itemDetailResponse {
	resp := itemDetailResponse{
		Item:     toWorkItemResponse(&d.Item),
		Marks:    make([]labelMarkResponse, 0, len(d.Marks)),
		Verdicts: make([]verdictResponse, 0, len(d.Verdicts)),
	}
	if d.Membership != nil {
		m := toMembershipResponse(d.Membership)
		resp.Membership = &m
	}
	for i := range d.Marks {
		resp.Marks = append(resp.Marks, toLabelMarkResponse(&d.Marks[i]))
	}
	for i := range d.Verdicts {
		resp.Verdicts = append(resp.Verdicts, toVerdictResponse(&d.Verdicts[i]))
	}
	return resp
}

func toReviewResponse(o *service.ReviewOutcome) reviewResponse {
	completed := o.CompletedBatchIDs
	if completed == nil {
		completed = []string{}
	}
	return reviewResponse{
		Verdict:           toVerdictResponse(&o.Verdict),
		Item:              toWorkItemResponse(&o.Item),
		CompletedBatchIDs: completed,
	}
}

func toRejectedResponses(items []service.RejectedItem) []rejectedItemResponse {
	responses := make([]rejectedItemResponse, 0, len(items))
	for i := range items {
		item := items[i]
		categories := item.DefectCategories
		if categories == nil {
			categories = []string{}
		}
		responses = append(responses, rejectedItemResponse{
			MembershipID:     item.MembershipID,
			WorkItem:         toWorkItemResponse(&item.WorkItem),
			Feedback:         item.Feedback,
			DefectCategories: categories,
			ReviewerID:       item.ReviewerID,
			RejectedAt:       item.RejectedAt,
		})
	}
	return responses
}

func toProjectStatsResponse(s *service.ProjectStats) projectStatsResponse {
	items := make(map[string]int, len(s.ItemsByStatus))
	for status, count := range s.ItemsByStatus {
		items[status.String()] = count
	}
	batches := make(map[string]int, len(s.BatchesByStatus))
	for status, count := range s.BatchesByStatus {
		batches[status.String()] = count
	}
	return projectStatsResponse{
		ProjectID:       s.ProjectID,
		TotalItems:      s.TotalItems,
		ItemsByStatus:   items,
		BatchesByStatus: batches,
		ApprovedItems:   s.ApprovedItems,
		RejectedItems:   s.RejectedItems,
		ProgressPercent: s.ProgressPercent,
		ApprovalRate:    s.ApprovalRate,
	}
}

func toProjectResponse(p *domain.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toDatasetResponse(d *domain.Dataset) datasetResponse {
	return datasetResponse{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toActivityResponses(entries []domain.ActivityEntry) []activityResponse {
	responses := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, activityResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	return responses
}
