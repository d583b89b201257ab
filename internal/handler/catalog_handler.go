package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/service"
)

const (
	uploadFormField      = "file"
	defaultActivityLimit = 50
)

type CatalogService interface {
	CreateProject(ctx context.Context, actor domain.Actor, in service.CreateProjectInput) (*domain.Project, error)
	GetProject(ctx context.Context, actor domain.Actor, projectID string) (*domain.Project, error)
	CreateDataset(ctx context.Context, actor domain.Actor, in service.CreateDatasetInput) (*domain.Dataset, error)
	UploadItem(ctx context.Context, actor domain.Actor, in service.UploadItemInput) (*domain.WorkItem, error)
	ImageURL(ctx context.Context, actor domain.Actor, itemID string) (string, error)
	ListDefectCategories(ctx context.Context, actor domain.Actor) ([]domain.DefectCategory, error)
	ListActivity(ctx context.Context, actor domain.Actor, targetType, targetID string, limit int) ([]domain.ActivityEntry, error)
}

type CatalogHandler struct {
	service CatalogService
}

func NewCatalogHandler(service CatalogService) (*CatalogHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("catalog service is required")
	}
	return &CatalogHandler{service: service}, nil
}

func RegisterCatalogRoutes(router fiber.Router, service CatalogService) error {
	h, err := NewCatalogHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/projects", h.CreateProject)
	v1.Get("/projects/:projectId", h.GetProject)
	v1.Post("/projects/:projectId/datasets", h.CreateDataset)
	v1.Post("/datasets/:datasetId/items", h.UploadItem)
	v1.Get("/items/:itemId/image", h.GetImageURL)
	v1.Get("/defect-categories", h.ListDefectCategories)
	v1.Get("/activity", h.ListActivity)

	return nil
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createDatasetRequest struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) CreateProject(c *fiber.Ctx) error {
	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	project, err := h.service.CreateProject(c.UserContext(), actorFrom(c), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toProjectResponse(project))
}

func (h *CatalogHandler) GetProject(c *fiber.Ctx) error {
	project, err := h.service.GetProject(c.UserContext(), actorFrom(c), c.Params("projectId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProjectResponse(project))
}

func (h *CatalogHandler) CreateDataset(c *fiber.Ctx) error {
	var req createDatasetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dataset, err := h.service.CreateDataset(c.UserContext(), actorFrom(c), service.CreateDatasetInput{
		ProjectID: c.Params("projectId"),
		Name:      req.Name,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDatasetResponse(dataset))
}

// UploadItem accepts a multipart form with the image under the "file" field.
func (h *CatalogHandler) UploadItem(c *fiber.Ctx) error {
	header, err := c.FormFile(uploadFormField)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}

	file, err := header.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "uploaded file cannot be read")
	}
	defer file.Close()

	item, err := h.service.UploadItem(c.UserContext(), actorFrom(c), service.UploadItemInput{
		DatasetID:   c.Params("datasetId"),
		FileName:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toWorkItemResponse(item))
}

func (h *CatalogHandler) GetImageURL(c *fiber.Ctx) error {
	url, err := h.service.ImageURL(c.UserContext(), actorFrom(c), c.Params("itemId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"itemId": c.Params("itemId"),
		"url":    url,
	})
}

func (h *CatalogHandler) ListDefectCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListDefectCategories(c.UserContext(), actorFrom(c))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]defectCategoryResponse, 0, len(categories))
	for _, category := range categories {
		data = append(data, defectCategoryResponse{
			ID:          category.ID,
			Name:        category.Name,
			Description: category.Description,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *CatalogHandler) ListActivity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultActivityLimit)
	if limit < 1 || limit > maxPageSize {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxPageSize))
	}

	entries, err := h.service.ListActivity(
		c.UserContext(),
		actorFrom(c),
		strings.TrimSpace(c.Query("targetType")),
		strings.TrimSpace(c.Query("targetId")),
		limit,
	)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": toActivityResponses(entries)})
}
