package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

// RequireCapability rejects callers missing any of caps. Services repeat the
// check, so this only trims requests early.
func RequireCapability(caps ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, capability := range caps {
			if !actor.Can(capability) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("missing capability %s", capability)))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// RequireAnyCapability admits callers holding at least one of caps.
func RequireAnyCapability(caps ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, capability := range caps {
			if actor.Can(capability) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient capabilities"))
		c.Abort()
	}
}
