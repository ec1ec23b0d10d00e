package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/middleware"
	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

func actorFromContext(c *gin.Context) *models.Actor {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return nil
	}
	return actor
}

// bindJSON decodes the request body into dest and writes a validation error
// when it cannot.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return false
	}
	return true
}
