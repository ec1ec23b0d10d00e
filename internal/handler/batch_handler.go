package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type batchService interface {
	Create(ctx context.Context, actor *models.Actor, req dto.UpsertBatchRequest) (*models.Batch, error)
	Update(ctx context.Context, actor *models.Actor, id string, req dto.UpsertBatchRequest) (*models.Batch, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*models.Batch, error)
	List(ctx context.Context, actor *models.Actor) ([]models.Batch, error)
}

// BatchHandler exposes batch management endpoints.
type BatchHandler struct {
	batches batchService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches batchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// List godoc
// @Summary List batches
// @Tags Batches
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	batches, err := h.batches.List(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}

// Get godoc
// @Summary Get batch
// @Tags Batches
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.batches.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Create godoc
// @Summary Create batch
// @Tags Batches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.UpsertBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	var req dto.UpsertBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	batch, err := h.batches.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Update godoc
// @Summary Update batch
// @Tags Batches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Param payload body dto.UpsertBatchRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [put]
func (h *BatchHandler) Update(c *gin.Context) {
	var req dto.UpsertBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	batch, err := h.batches.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}
