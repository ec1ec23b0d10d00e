package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/middleware"
	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type dashboardService interface {
	Student(ctx context.Context, actor *models.Actor, subjectID string) (*models.StudentDashboard, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Mine godoc
// @Summary Own student dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Mine(c *gin.Context) {
	h.respond(c, "")
}

// Student godoc
// @Summary Dashboard of a student in scope
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Student subject ID"
// @Success 200 {object} response.Envelope
// @Router /dashboard/students/{userId} [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	h.respond(c, c.Param("userId"))
}

func (h *DashboardHandler) respond(c *gin.Context, subjectID string) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Student(c.Request.Context(), actorFromContext(c), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.RecordReadModel(c, middleware.ServedReadModel{
		Model:       middleware.ReadModelStudentDashboard,
		SubjectID:   summary.UserID,
		BatchID:     summary.BatchID,
		CacheHit:    cacheHit,
		GeneratedAt: summary.GeneratedAt,
	})
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
