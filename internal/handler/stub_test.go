package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"github.com/kursadbilgin/labelflow/internal/service"
	"github.com/kursadbilgin/labelflow/internal/transport"
	"go.uber.org/zap"
)

var errNotStubbed = errors.New("not stubbed")

var (
	testManager   = domain.Actor{ID: "manager-1", Role: domain.RoleManager}
	testAnnotator = domain.Actor{ID: "annotator-1", Role: domain.RoleAnnotator}
	testReviewer  = domain.Actor{ID: "reviewer-1", Role: domain.RoleReviewer}
)

type stubWorkflowService struct {
	createBatchFn       func(ctx context.Context, actor domain.Actor, in service.CreateBatchInput) (*domain.Batch, *service.AssignmentResult, error)
	assignItemsFn       func(ctx context.Context, actor domain.Actor, batchID string, itemIDs []string) (*service.AssignmentResult, error)
	removeItemsFn       func(ctx context.Context, actor domain.Actor, batchID string, itemIDs []string) (*service.RemovalResult, error)
	deleteBatchFn       func(ctx context.Context, actor domain.Actor, batchID string) error
	startFn             func(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error)
	completeFn          func(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error)
	submitBatchFn       func(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error)
	recomputeFn         func(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error)
	reviewFn            func(ctx context.Context, actor domain.Actor, in service.ReviewInput) (*service.ReviewOutcome, error)
	startReAnnotationFn func(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error)
	listRejectedFn      func(ctx context.Context, actor domain.Actor, batchID string) ([]service.RejectedItem, error)
	createMarkFn        func(ctx context.Context, actor domain.Actor, itemID string, in service.MarkInput) (*domain.LabelMark, error)
	updateMarkFn        func(ctx context.Context, actor domain.Actor, markID string, in service.MarkInput) (*domain.LabelMark, error)
	deleteMarkFn        func(ctx context.Context, actor domain.Actor, markID string) error
	getBatchDetailFn    func(ctx context.Context, actor domain.Actor, batchID string) (*service.BatchDetail, error)
	getItemDetailFn     func(ctx context.Context, actor domain.Actor, itemID string) (*service.ItemDetail, error)
	listBatchesFn       func(ctx context.Context, actor domain.Actor, params repository.BatchListParams) ([]domain.Batch, int64, error)
	listItemsFn         func(ctx context.Context, actor domain.Actor, params repository.ItemListParams) ([]domain.WorkItem, int64, error)
	getProjectStatsFn   func(ctx context.Context, actor domain.Actor, projectID string) (*service.ProjectStats, error)
}

func (s *stubWorkflowService) CreateBatch(ctx context.Context, actor domain.Actor, in service.CreateBatchInput) (*domain.Batch, *service.AssignmentResult, error) {
	if s.createBatchFn == nil {
		return nil, nil, errNotStubbed
	}
	return s.createBatchFn(ctx, actor, in)
}

func (s *stubWorkflowService) AssignItems(ctx context.Context, actor domain.Actor, batchID string, itemIDs []string) (*service.AssignmentResult, error) {
	if s.assignItemsFn == nil {
		return nil, errNotStubbed
	}
	return s.assignItemsFn(ctx, actor, batchID, itemIDs)
}

func (s *stubWorkflowService) RemoveItems(ctx context.Context, actor domain.Actor, batchID string, itemIDs []string) (*service.RemovalResult, error) {
	if s.removeItemsFn == nil {
		return nil, errNotStubbed
	}
	return s.removeItemsFn(ctx, actor, batchID, itemIDs)
}

func (s *stubWorkflowService) DeleteBatch(ctx context.Context, actor domain.Actor, batchID string) error {
	if s.deleteBatchFn == nil {
		return errNotStubbed
	}
	return s.deleteBatchFn(ctx, actor, batchID)
}

func (s *stubWorkflowService) Start(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error) {
	if s.startFn == nil {
		return nil, errNotStubbed
	}
	return s.startFn(ctx, actor, membershipID)
}

func (s *stubWorkflowService) Complete(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error) {
	if s.completeFn == nil {
		return nil, errNotStubbed
	}
	return s.completeFn(ctx, actor, membershipID)
}

func (s *stubWorkflowService) SubmitBatch(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error) {
	if s.submitBatchFn == nil {
		return nil, errNotStubbed
	}
	return s.submitBatchFn(ctx, actor, batchID)
}

func (s *stubWorkflowService) Recompute(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error) {
	if s.recomputeFn == nil {
		return nil, errNotStubbed
	}
	return s.recomputeFn(ctx, actor, batchID)
}

func (s *stubWorkflowService) Review(ctx context.Context, actor domain.Actor, in service.ReviewInput) (*service.ReviewOutcome, error) {
	if s.reviewFn == nil {
		return nil, errNotStubbed
	}
	return s.reviewFn(ctx, actor, in)
}

func (s *stubWorkflowService) StartReAnnotation(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error) {
	if s.startReAnnotationFn == nil {
		return nil, errNotStubbed
	}
	return s.startReAnnotationFn(ctx, actor, membershipID)
}

func (s *stubWorkflowService) ListRejected(ctx context.Context, actor domain.Actor, batchID string) ([]service.RejectedItem, error) {
	if s.listRejectedFn == nil {
		return nil, errNotStubbed
	}
	return s.listRejectedFn(ctx, actor, batchID)
}

func (s *stubWorkflowService) CreateMark(ctx context.Context, actor domain.Actor, itemID string, in service.MarkInput) (*domain.LabelMark, error) {
	if s.createMarkFn == nil {
		return nil, errNotStubbed
	}
	return s.createMarkFn(ctx, actor, itemID, in)
}

func (s *stubWorkflowService) UpdateMark(ctx context.Context, actor domain.Actor, markID string, in service.MarkInput) (*domain.LabelMark, error) {
	if s.updateMarkFn == nil {
		return nil, errNotStubbed
	}
	return s.updateMarkFn(ctx, actor, markID, in)
}

func (s *stubWorkflowService) DeleteMark(ctx context.Context, actor domain.Actor, markID string) error {
	if s.deleteMarkFn == nil {
		return errNotStubbed
	}
	return s.deleteMarkFn(ctx, actor, markID)
}

func (s *stubWorkflowService) GetBatchDetail(ctx context.Context, actor domain.Actor, batchID string) (*service.BatchDetail, error) {
	if s.getBatchDetailFn == nil {
		return nil, errNotStubbed
	}
	return s.getBatchDetailFn(ctx, actor, batchID)
}

func (s *stubWorkflowService) GetItemDetail(ctx context.Context, actor domain.Actor, itemID string) (*service.ItemDetail, error) {
	if s.getItemDetailFn == nil {
		return nil, errNotStubbed
	}
	return s.getItemDetailFn(ctx, actor, itemID)
}

func (s *stubWorkflowService) ListBatches(ctx context.Context, actor domain.Actor, params repository.BatchListParams) ([]domain.Batch, int64, error) {
	if s.listBatchesFn == nil {
		return nil, 0, errNotStubbed
	}
	return s.listBatchesFn(ctx, actor, params)
}

func (s *stubWorkflowService) ListItems(ctx context.Context, actor domain.Actor, params repository.ItemListParams) ([]domain.WorkItem, int64, error) {
	if s.listItemsFn == nil {
		return nil, 0, errNotStubbed
	}
	return s.listItemsFn(ctx, actor, params)
}

func (s *stubWorkflowService) GetProjectStats(ctx context.Context, actor domain.Actor, projectID string) (*service.ProjectStats, error) {
	if s.getProjectStatsFn == nil {
		return nil, errNotStubbed
	}
	return s.getProjectStatsFn(ctx, actor, projectID)
}

type stubCatalogService struct {
	createProjectFn  func(ctx context.Context, actor domain.Actor, in service.CreateProjectInput) (*domain.Project, error)
	getProjectFn     func(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error)
	createDatasetFn  func(ctx context.Context, actor domain.Actor, in service.CreateDatasetInput) (*domain.Dataset, error)
	uploadItemFn     func(ctx context.Context, actor domain.Actor, in service.UploadItemInput) (*domain.WorkItem, error)
	imageURLFn       func(ctx context.Context, actor domain.Actor, itemID string) (string, error)
	listCategoriesFn func(ctx context.Context, actor domain.Actor) ([]domain.DefectCategory, error)
	listActivityFn   func(ctx context.Context, actor domain.Actor, targetType, targetID string, limit int) ([]domain.ActivityEntry, error)
}

func (s *stubCatalogService) CreateProject(ctx context.Context, actor domain.Actor, in service.CreateProjectInput) (*domain.Project, error) {
	if s.createProjectFn == nil {
		return nil, errNotStubbed
	}
	return s.createProjectFn(ctx, actor, in)
}

func (s *stubCatalogService) GetProject(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error) {
	if s.getProjectFn == nil {
		return nil, errNotStubbed
	}
	return s.getProjectFn(ctx, actor, projectID)
}

func (s *stubCatalogService) CreateDataset(ctx context.Context, actor domain.Actor, in service.CreateDatasetInput) (*domain.Dataset, error) {
	if s.createDatasetFn == nil {
		return nil, errNotStubbed
	}
	return s.createDatasetFn(ctx, actor, in)
}

func (s *stubCatalogService) UploadItem(ctx context.Context, actor domain.Actor, in service.UploadItemInput) (*domain.WorkItem, error) {
	if s.uploadItemFn == nil {
		return nil, errNotStubbed
	}
	return s.uploadItemFn(ctx, actor, in)
}

func (s *stubCatalogService) ImageURL(ctx context.Context, actor domain.Actor, itemID string) (string, error) {
	if s.imageURLFn == nil {
		return "", errNotStubbed
	}
	return s.imageURLFn(ctx, actor, itemID)
}

func (s *stubCatalogService) ListDefectCategories(ctx context.Context, actor domain.Actor) ([]domain.DefectCategory, error) {
	if s.listCategoriesFn == nil {
		return nil, errNotStubbed
	}
	return s.listCategoriesFn(ctx, actor)
}

func (s *stubCatalogService) ListActivity(ctx context.Context, actor domain.Actor, targetType, targetID string, limit int) ([]domain.ActivityEntry, error) {
	if s.listActivityFn == nil {
		return nil, errNotStubbed
	}
	return s.listActivityFn(ctx, actor, targetType, targetID, limit)
}

func newTestApp(t *testing.T, workflow WorkflowService, catalog CatalogService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	app.Use(CorrelationID())
	app.Use(ActorIdentity())

	if workflow != nil {
		if err := RegisterWorkflowRoutes(app, workflow); err != nil {
			t.Fatalf("RegisterWorkflowRoutes() error = %v", err)
		}
	}
	if catalog != nil {
		if err := RegisterCatalogRoutes(app, catalog); err != nil {
			t.Fatalf("RegisterCatalogRoutes() error = %v", err)
		}
	}
	return app
}

func performRequest(t *testing.T, app *fiber.App, actor domain.Actor, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if actor.ID != "" {
		req.Header.Set(headerActorID, actor.ID)
		req.Header.Set(headerActorRole, actor.Role.String())
	}
	return doRequest(t, app, req)
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}
