package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type resourceService interface {
	Create(ctx context.Context, actor *models.Actor, req dto.CreateResourceRequest) (*models.Resource, error)
	List(ctx context.Context, actor *models.Actor, batchID string, kind models.ResourceKind) ([]models.Resource, error)
}

// ResourceHandler exposes batch materials and assignments.
type ResourceHandler struct {
	resources resourceService
}

// NewResourceHandler constructs ResourceHandler.
func NewResourceHandler(resources resourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// Create godoc
// @Summary Record a resource
// @Description storage_path is the location returned by the upload service; it is stored as given.
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateResourceRequest true "Resource"
// @Success 201 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	var req dto.CreateResourceRequest
	if !bindJSON(c, &req) {
		return
	}
	resource, err := h.resources.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// List godoc
// @Summary List resources
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param batchId query string false "Batch"
// @Param kind query string false "material or assignment"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	resources, err := h.resources.List(c.Request.Context(), actorFromContext(c), c.Query("batchId"), models.ResourceKind(c.Query("kind")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, nil)
}
