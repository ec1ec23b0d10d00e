package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type projectService interface {
	CreateProject(ctx context.Context, actor *models.Actor, req dto.CreateProjectRequest) (*models.Project, error)
	JoinProject(ctx context.Context, actor *models.Actor, projectID string) (*models.ProjectMember, error)
	AddMember(ctx context.Context, actor *models.Actor, projectID string, req dto.AddMemberRequest) (*models.ProjectMember, error)
	AvailableProjects(ctx context.Context, actor *models.Actor) ([]models.Project, error)
	ListMine(ctx context.Context, actor *models.Actor) ([]models.Project, error)
	List(ctx context.Context, actor *models.Actor) ([]models.Project, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*models.ProjectDetail, error)
}

// ProjectHandler exposes team formation endpoints.
type ProjectHandler struct {
	projects projectService
}

// NewProjectHandler constructs ProjectHandler.
func NewProjectHandler(projects projectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// Create godoc
// @Summary Create a project led by the caller
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateProjectRequest true "Project"
// @Success 201 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projects.CreateProject(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Join godoc
// @Summary Join a project
// @Description Requires an approved student from the lead's batch; projects hold at most five members.
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id}/join [post]
func (h *ProjectHandler) Join(c *gin.Context) {
	member, err := h.projects.JoinProject(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// AddMember godoc
// @Summary Add a member as project lead
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param payload body dto.AddMemberRequest true "Member"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id}/members [post]
func (h *ProjectHandler) AddMember(c *gin.Context) {
	var req dto.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	member, err := h.projects.AddMember(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// Available godoc
// @Summary Projects the caller can join
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /projects/available [get]
func (h *ProjectHandler) Available(c *gin.Context) {
	projects, err := h.projects.AvailableProjects(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// Mine godoc
// @Summary Projects the caller belongs to
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /projects/mine [get]
func (h *ProjectHandler) Mine(c *gin.Context) {
	projects, err := h.projects.ListMine(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// List godoc
// @Summary List projects in scope
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// Get godoc
// @Summary Project detail with members
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	detail, err := h.projects.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
