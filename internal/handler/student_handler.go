package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type studentService interface {
	Register(ctx context.Context, actor *models.Actor, req dto.RegisterStudentRequest) (*models.StudentProfile, error)
	Review(ctx context.Context, actor *models.Actor, profileID string, req dto.ReviewStudentRequest) (*models.StudentProfile, error)
	Mine(ctx context.Context, actor *models.Actor) (*models.StudentProfile, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*models.StudentProfile, error)
	List(ctx context.Context, actor *models.Actor, filter models.StudentProfileFilter) ([]models.StudentProfile, *models.Pagination, error)
	SearchByPhone(ctx context.Context, actor *models.Actor, phone string) ([]models.StudentLookup, error)
}

// StudentHandler exposes registration and the approval workflow.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// Register godoc
// @Summary Register as a student
// @Description Creates a pending profile for the caller in the chosen batch.
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RegisterStudentRequest true "Registration"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/register [post]
func (h *StudentHandler) Register(c *gin.Context) {
	var req dto.RegisterStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.students.Register(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, profile)
}

// Mine godoc
// @Summary Own student profile
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/me [get]
func (h *StudentHandler) Mine(c *gin.Context) {
	profile, err := h.students.Mine(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// List godoc
// @Summary List student profiles
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param batchId query string false "Filter by batch"
// @Param search query string false "Search by name or student code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentProfileFilter
	if status := c.Query("status"); status != "" {
		s := models.ApprovalStatus(status)
		if s != models.StatusPending && s != models.StatusApproved && s != models.StatusRejected {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status filter"))
			return
		}
		filter.Status = &s
	}
	if batchID := strings.TrimSpace(c.Query("batchId")); batchID != "" {
		filter.BatchIDs = []string{batchID}
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	profiles, pagination, err := h.students.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profiles, pagination)
}

// Get godoc
// @Summary Get student profile
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	profile, err := h.students.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Review godoc
// @Summary Approve or reject a pending student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Param payload body dto.ReviewStudentRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/review [post]
func (h *StudentHandler) Review(c *gin.Context) {
	var req dto.ReviewStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.students.Review(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Search godoc
// @Summary Find approved students by phone
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param phone query string true "Exact phone number"
// @Success 200 {object} response.Envelope
// @Router /students/search [get]
func (h *StudentHandler) Search(c *gin.Context) {
	results, err := h.students.SearchByPhone(c.Request.Context(), actorFromContext(c), c.Query("phone"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
