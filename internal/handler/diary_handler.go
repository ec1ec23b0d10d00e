package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/internal/service"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type diaryService interface {
	Create(ctx context.Context, actor *models.Actor, req dto.CreateDiaryEntryRequest) (*models.DiaryEntry, error)
	Update(ctx context.Context, actor *models.Actor, id string, req dto.UpdateDiaryEntryRequest) (*models.DiaryEntry, error)
	Lock(ctx context.Context, actor *models.Actor, id string) error
	Get(ctx context.Context, actor *models.Actor, id string) (*models.DiaryEntry, error)
	List(ctx context.Context, actor *models.Actor, query dto.DiaryQuery) ([]models.DiaryEntry, error)
	Aggregate(ctx context.Context, actor *models.Actor, ownerID string) (*models.DiaryAggregate, error)
	Export(ctx context.Context, actor *models.Actor, query dto.DiaryQuery, format string) (*service.ExportedFile, error)
}

// DiaryHandler exposes the diary ledger.
type DiaryHandler struct {
	diary diaryService
}

// NewDiaryHandler constructs DiaryHandler.
func NewDiaryHandler(diary diaryService) *DiaryHandler {
	return &DiaryHandler{diary: diary}
}

// Create godoc
// @Summary Log a diary entry
// @Description The week number is assigned by the server: seven entries per week in insertion order.
// @Tags Diary
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateDiaryEntryRequest true "Entry"
// @Success 201 {object} response.Envelope
// @Router /diary [post]
func (h *DiaryHandler) Create(c *gin.Context) {
	var req dto.CreateDiaryEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.diary.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Edit a diary entry
// @Description Only the owner may edit, within seven days of creation and while unlocked.
// @Tags Diary
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateDiaryEntryRequest true "Entry"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /diary/{id} [put]
func (h *DiaryHandler) Update(c *gin.Context) {
	var req dto.UpdateDiaryEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.diary.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Lock godoc
// @Summary Lock a diary entry
// @Tags Diary
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 204
// @Router /diary/{id}/lock [post]
func (h *DiaryHandler) Lock(c *gin.Context) {
	if err := h.diary.Lock(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get a diary entry
// @Tags Diary
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /diary/{id} [get]
func (h *DiaryHandler) Get(c *gin.Context) {
	entry, err := h.diary.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// List godoc
// @Summary List diary entries
// @Tags Diary
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Owner (staff only)"
// @Param week query int false "Week number"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /diary [get]
func (h *DiaryHandler) List(c *gin.Context) {
	var query dto.DiaryQuery
	if !bindQuery(c, &query) {
		return
	}
	entries, err := h.diary.List(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Aggregate godoc
// @Summary Diary totals
// @Tags Diary
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Owner, defaults to the caller"
// @Success 200 {object} response.Envelope
// @Router /diary/aggregate [get]
func (h *DiaryHandler) Aggregate(c *gin.Context) {
	aggregate, err := h.diary.Aggregate(c.Request.Context(), actorFromContext(c), c.Query("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aggregate, nil)
}

// Export godoc
// @Summary Export diary entries
// @Tags Diary
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv, pdf or xlsx"
// @Param user_id query string false "Owner (staff only)"
// @Param week query int false "Week number"
// @Success 200 {file} binary
// @Router /diary/export [get]
func (h *DiaryHandler) Export(c *gin.Context) {
	var query dto.DiaryQuery
	if !bindQuery(c, &query) {
		return
	}
	file, err := h.diary.Export(c.Request.Context(), actorFromContext(c), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
