package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/logger"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor.
const ContextActorKey = "actor"

type tokenValidator interface {
	ValidateToken(token string) (*models.IdentityClaims, error)
}

type actorResolver interface {
	Resolve(ctx context.Context, subjectID string) (*models.Actor, error)
}

// Identity verifies the bearer token and resolves the caller's actor from
// current store state on every request.
func Identity(tokens tokenValidator, actors actorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		actor, err := actors.Resolve(c.Request.Context(), claims.Subject)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Set(logger.SubjectKey, actor.SubjectID)
		c.Next()
	}
}

// ActorFrom returns the actor attached by Identity.
func ActorFrom(c *gin.Context) (*models.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil, false
	}
	actor, ok := value.(*models.Actor)
	return actor, ok && actor != nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
