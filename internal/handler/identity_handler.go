package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type identityService interface {
	AssignRole(ctx context.Context, actor *models.Actor, req dto.AssignRoleRequest) (*models.Identity, error)
}

// IdentityHandler exposes the caller's resolved identity and role binding.
type IdentityHandler struct {
	identity identityService
}

// NewIdentityHandler constructs IdentityHandler.
func NewIdentityHandler(identity identityService) *IdentityHandler {
	return &IdentityHandler{identity: identity}
}

// Me godoc
// @Summary Current actor
// @Description Returns the caller's role, approval status, scope and capabilities as resolved for this request.
// @Tags Identity
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *IdentityHandler) Me(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, actor, nil)
}

// AssignRole godoc
// @Summary Assign a role to a subject
// @Tags Identity
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignRoleRequest true "Role assignment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /roles [post]
func (h *IdentityHandler) AssignRole(c *gin.Context) {
	var req dto.AssignRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	identity, err := h.identity.AssignRole(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, identity)
}
