package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"github.com/kursadbilgin/labelflow/internal/service"
)

type WorkflowService interface {
	CreateBatch(ctx context.Context, actor domain.Actor, in service.CreateBatchInput) (*domain.Batch, *service.AssignmentResult, error)
	AssignItems(ctx context.Context, actor domain.Actor, batchID string, itemIDs []string) (*service.AssignmentResult, error)
	RemoveItems(ctx context.Context, actor domain.Actor, batchID string, itemIDs []string) (*service.RemovalResult, error)
	DeleteBatch(ctx context.Context, actor domain.Actor, batchID string) error
	Start(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error)
	Complete(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error)
	SubmitBatch(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error)
	Recompute(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error)
	Review(ctx context.Context, actor domain.Actor, in service.ReviewInput) (*service.ReviewOutcome, error)
	StartReAnnotation(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error)
	ListRejected(ctx context.Context, actor domain.Actor, batchID string) ([]service.RejectedItem, error)
	CreateMark(ctx context.Context, actor domain.Actor, itemID string, in service.MarkInput) (*domain.LabelMark, error)
	UpdateMark(ctx context.Context, actor domain.Actor, markID string, in service.MarkInput) (*domain.LabelMark, error)
	DeleteMark(ctx context.Context, actor domain.Actor, markID string) error
	GetBatchDetail(ctx context.Context, actor domain.Actor, batchID string) (*service.BatchDetail, error)
	GetItemDetail(ctx context.Context, actor domain.Actor, itemID string) (*service.ItemDetail, error)
	ListBatches(ctx context.Context, actor domain.Actor, params repository.BatchListParams) ([]domain.Batch, int64, error)
	ListItems(ctx context.Context, actor domain.Actor, params repository.ItemListParams) ([]domain.WorkItem, int64, error)
	GetProjectStats(ctx context.Context, actor domain.Actor, projectID string) (*service.ProjectStats, error)
}

type WorkflowHandler struct {
	service WorkflowService
}

func NewWorkflowHandler(service WorkflowService) (*WorkflowHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("workflow service is required")
	}
	return &WorkflowHandler{service: service}, nil
}

// RegisterWorkflowRoutes mounts the batch, session, review and mark endpoints.
// The router must already carry the ActorIdentity middleware.
func RegisterWorkflowRoutes(router fiber.Router, service WorkflowService) error {
	h, err := NewWorkflowHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.CreateBatch)
	v1.Get("/batches", h.ListBatches)
	v1.Get("/batches/:batchId", h.GetBatch)
	v1.Delete("/batches/:batchId", h.DeleteBatch)
	v1.Post("/batches/:batchId/items", h.AssignItems)
	v1.Post("/batches/:batchId/items/remove", h.RemoveItems)
	v1.Post("/batches/:batchId/submit", h.SubmitBatch)
	v1.Post("/batches/:batchId/recompute", h.RecomputeBatch)
	v1.Get("/batches/:batchId/rejected", h.ListRejected)

	v1.Post("/memberships/:membershipId/start", h.StartMembership)
	v1.Post("/memberships/:membershipId/complete", h.CompleteMembership)
	v1.Post("/memberships/:membershipId/reannotate", h.StartReAnnotation)

	v1.Post("/reviews", h.Review)

	v1.Get("/items", h.ListItems)
	v1.Get("/items/:itemId", h.GetItem)
	v1.Post("/items/:itemId/marks", h.CreateMark)
	v1.Put("/marks/:markId", h.UpdateMark)
	v1.Delete("/marks/:markId", h.DeleteMark)

	v1.Get("/projects/:projectId/stats", h.GetProjectStats)

	return nil
}

type createBatchRequest struct {
	ProjectID  string   `json:"projectId"`
	Name       string   `json:"name"`
	AssigneeID string   `json:"assigneeId"`
	DueAt      *string  `json:"dueAt,omitempty"`
	ItemIDs    []string `json:"itemIds"`
}

type itemIDsRequest struct {
	ItemIDs []string `json:"itemIds"`
}

type reviewRequest struct {
	WorkItemID        string   `json:"workItemId"`
	Decision          string   `json:"decision"`
	Feedback          *string  `json:"feedback,omitempty"`
	DefectCategoryIDs []string `json:"defectCategoryIds"`
}

type markRequest struct {
	ClassName string         `json:"className"`
	Shape     string         `json:"shape"`
	Points    []domain.Point `json:"points"`
}

func (h *WorkflowHandler) CreateBatch(c *fiber.Ctx) error {
	var req createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dueAt, err := parseRFC3339(req.DueAt, "dueAt")
	if err != nil {
		return toHTTPError(err)
	}

	batch, result, err := h.service.CreateBatch(c.UserContext(), actorFrom(c), service.CreateBatchInput{
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		AssigneeID: req.AssigneeID,
		DueAt:      dueAt,
		ItemIDs:    req.ItemIDs,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(createBatchResponse{
		Batch:      toBatchResponse(batch),
		Assignment: toAssignmentResponse(result),
	})
}

func (h *WorkflowHandler) AssignItems(c *fiber.Ctx) error {
	var req itemIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.AssignItems(c.UserContext(), actorFrom(c), c.Params("batchId"), req.ItemIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toAssignmentResponse(result))
}

func (h *WorkflowHandler) RemoveItems(c *fiber.Ctx) error {
	var req itemIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.RemoveItems(c.UserContext(), actorFrom(c), c.Params("batchId"), req.ItemIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(removalResponse{
		RemovedCount: result.RemovedCount,
		SkippedCount: result.SkippedCount,
		SkippedItems: toSkippedResponses(result.SkippedItems),
	})
}

func (h *WorkflowHandler) DeleteBatch(c *fiber.Ctx) error {
	if err := h.service.DeleteBatch(c.UserContext(), actorFrom(c), c.Params("batchId")); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WorkflowHandler) GetBatch(c *fiber.Ctx) error {
	detail, err := h.service.GetBatchDetail(c.UserContext(), actorFrom(c), c.Params("batchId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchDetailResponse(detail))
}

func (h *WorkflowHandler) ListBatches(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return toHTTPError(err)
	}
	params := repository.BatchListParams{Page: page, PageSize: pageSize}

	if projectID := strings.TrimSpace(c.Query("projectId")); projectID != "" {
		params.ProjectID = &projectID
	}
	if assigneeID := strings.TrimSpace(c.Query("assigneeId")); assigneeID != "" {
		params.AssigneeID = &assigneeID
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseBatchStatus(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	batches, total, err := h.service.ListBatches(c.UserContext(), actorFrom(c), params)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(listBatchesResponse{
		Data: toBatchResponses(batches),
		Meta: listMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func (h *WorkflowHandler) SubmitBatch(c *fiber.Ctx) error {
	batch, err := h.service.SubmitBatch(c.UserContext(), actorFrom(c), c.Params("batchId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *WorkflowHandler) RecomputeBatch(c *fiber.Ctx) error {
	batch, err := h.service.Recompute(c.UserContext(), actorFrom(c), c.Params("batchId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *WorkflowHandler) ListRejected(c *fiber.Ctx) error {
	items, err := h.service.ListRejected(c.UserContext(), actorFrom(c), c.Params("batchId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": toRejectedResponses(items),
	})
}

func (h *WorkflowHandler) StartMembership(c *fiber.Ctx) error {
	m, err := h.service.Start(c.UserContext(), actorFrom(c), c.Params("membershipId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toMembershipResponse(m))
}

func (h *WorkflowHandler) CompleteMembership(c *fiber.Ctx) error {
	m, err := h.service.Complete(c.UserContext(), actorFrom(c), c.Params("membershipId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toMembershipResponse(m))
}

func (h *WorkflowHandler) StartReAnnotation(c *fiber.Ctx) error {
	m, err := h.service.StartReAnnotation(c.UserContext(), actorFrom(c), c.Params("membershipId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toMembershipResponse(m))
}

func (h *WorkflowHandler) Review(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	decision, err := domain.ParseDecision(req.Decision)
	if err != nil {
		return toHTTPError(err)
	}

	outcome, err := h.service.Review(c.UserContext(), actorFrom(c), service.ReviewInput{
		WorkItemID:        req.WorkItemID,
		Decision:          decision,
		Feedback:          req.Feedback,
		DefectCategoryIDs: req.DefectCategoryIDs,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toReviewResponse(outcome))
}

func (h *WorkflowHandler) ListItems(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return toHTTPError(err)
	}
	params := repository.ItemListParams{Page: page, PageSize: pageSize}

	if datasetID := strings.TrimSpace(c.Query("datasetId")); datasetID != "" {
		params.DatasetID = &datasetID
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseItemStatus(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	items, total, err := h.service.ListItems(c.UserContext(), actorFrom(c), params)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(listItemsResponse{
		Data: toWorkItemResponses(items),
		Meta: listMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func (h *WorkflowHandler) GetItem(c *fiber.Ctx) error {
	detail, err := h.service.GetItemDetail(c.UserContext(), actorFrom(c), c.Params("itemId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toItemDetailResponse(detail))
}

func (h *WorkflowHandler) CreateMark(c *fiber.Ctx) error {
	in, err := parseMarkRequest(c)
	if err != nil {
		return err
	}

	mark, err := h.service.CreateMark(c.UserContext(), actorFrom(c), c.Params("itemId"), in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toLabelMarkResponse(mark))
}

func (h *WorkflowHandler) UpdateMark(c *fiber.Ctx) error {
	in, err := parseMarkRequest(c)
	if err != nil {
		return err
	}

	mark, err := h.service.UpdateMark(c.UserContext(), actorFrom(c), c.Params("markId"), in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toLabelMarkResponse(mark))
}

func (h *WorkflowHandler) DeleteMark(c *fiber.Ctx) error {
	if err := h.service.DeleteMark(c.UserContext(), actorFrom(c), c.Params("markId")); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WorkflowHandler) GetProjectStats(c *fiber.Ctx) error {
	stats, err := h.service.GetProjectStats(c.UserContext(), actorFrom(c), c.Params("projectId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProjectStatsResponse(stats))
}

func parseMarkRequest(c *fiber.Ctx) (service.MarkInput, error) {
	var req markRequest
	if err := c.BodyParser(&req); err != nil {
		return service.MarkInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	shape, err := domain.ParseShape(req.Shape)
	if err != nil {
		return service.MarkInput{}, toHTTPError(err)
	}
	return service.MarkInput{
		ClassName: req.ClassName,
		Shape:     shape,
		Points:    req.Points,
	}, nil
}
