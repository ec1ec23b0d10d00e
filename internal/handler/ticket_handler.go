package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type ticketService interface {
	CreateLeave(ctx context.Context, actor *models.Actor, req dto.CreateLeaveRequest) (*models.LeaveRequest, error)
	ReviewLeave(ctx context.Context, actor *models.Actor, id string, req dto.ReviewLeaveRequest) (*models.LeaveRequest, error)
	GetLeave(ctx context.Context, actor *models.Actor, id string) (*models.LeaveRequest, error)
	ListLeaves(ctx context.Context, actor *models.Actor, query dto.TicketQuery) ([]models.LeaveRequest, error)
	CreateQuery(ctx context.Context, actor *models.Actor, req dto.CreateQueryRequest) (*models.AdminQuery, error)
	ResolveQuery(ctx context.Context, actor *models.Actor, id string, req dto.ResolveQueryRequest) (*models.AdminQuery, error)
	GetQuery(ctx context.Context, actor *models.Actor, id string) (*models.AdminQuery, error)
	ListQueries(ctx context.Context, actor *models.Actor, query dto.TicketQuery) ([]models.AdminQuery, error)
}

// TicketHandler exposes leave requests and admin queries.
type TicketHandler struct {
	tickets ticketService
}

// NewTicketHandler constructs TicketHandler.
func NewTicketHandler(tickets ticketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// CreateLeave godoc
// @Summary Request leave
// @Tags Leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateLeaveRequest true "Leave request"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *TicketHandler) CreateLeave(c *gin.Context) {
	var req dto.CreateLeaveRequest
	if !bindJSON(c, &req) {
		return
	}
	leave, err := h.tickets.CreateLeave(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// ReviewLeave godoc
// @Summary Approve or reject a leave request
// @Tags Leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Leave request ID"
// @Param payload body dto.ReviewLeaveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id}/review [post]
func (h *TicketHandler) ReviewLeave(c *gin.Context) {
	var req dto.ReviewLeaveRequest
	if !bindJSON(c, &req) {
		return
	}
	leave, err := h.tickets.ReviewLeave(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// GetLeave godoc
// @Summary Get a leave request
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Param id path string true "Leave request ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id} [get]
func (h *TicketHandler) GetLeave(c *gin.Context) {
	leave, err := h.tickets.GetLeave(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// ListLeaves godoc
// @Summary List leave requests
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Owner (admin only)"
// @Param status query string false "pending, approved or rejected"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /leaves [get]
func (h *TicketHandler) ListLeaves(c *gin.Context) {
	var query dto.TicketQuery
	if !bindQuery(c, &query) {
		return
	}
	leaves, err := h.tickets.ListLeaves(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, nil)
}

// CreateQuery godoc
// @Summary Raise a query for the administration
// @Tags Queries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateQueryRequest true "Query"
// @Success 201 {object} response.Envelope
// @Router /queries [post]
func (h *TicketHandler) CreateQuery(c *gin.Context) {
	var req dto.CreateQueryRequest
	if !bindJSON(c, &req) {
		return
	}
	query, err := h.tickets.CreateQuery(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, query)
}

// ResolveQuery godoc
// @Summary Resolve a query
// @Tags Queries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Query ID"
// @Param payload body dto.ResolveQueryRequest false "Optional response"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /queries/{id}/resolve [post]
func (h *TicketHandler) ResolveQuery(c *gin.Context) {
	var req dto.ResolveQueryRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	query, err := h.tickets.ResolveQuery(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, query, nil)
}

// GetQuery godoc
// @Summary Get a query
// @Tags Queries
// @Produce json
// @Security BearerAuth
// @Param id path string true "Query ID"
// @Success 200 {object} response.Envelope
// @Router /queries/{id} [get]
func (h *TicketHandler) GetQuery(c *gin.Context) {
	query, err := h.tickets.GetQuery(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, query, nil)
}

// ListQueries godoc
// @Summary List queries
// @Tags Queries
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Owner (admin only)"
// @Param resolved query bool false "Filter by resolution"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /queries [get]
func (h *TicketHandler) ListQueries(c *gin.Context) {
	var query dto.TicketQuery
	if !bindQuery(c, &query) {
		return
	}
	queries, err := h.tickets.ListQueries(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, queries, nil)
}
