package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/internal/repository"
	"github.com/noah-isme/internship-portal-api/pkg/config"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type roleStore interface {
	AssignRole(ctx context.Context, identity *models.Identity) error
}

// IdentityService verifies identity-provider tokens and manages role binding.
// It never issues credentials.
type IdentityService struct {
	roles     roleStore
	config    config.IdentityConfig
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIdentityService constructs the service.
func NewIdentityService(roles roleStore, cfg config.IdentityConfig, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *IdentityService {
	if validate == nil {
		validate = newValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		roles:     roles,
		config:    cfg,
		audit:     auditTrail{sink: audit, logger: logger},
		validator: validate,
		logger:    logger,
	}
}

// ValidateToken verifies an HS256 token minted by the identity provider and
// returns its claims. The subject claim is mandatory.
func (s *IdentityService) ValidateToken(tokenString string) (*models.IdentityClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.config.Audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// AssignRole binds a role to a subject exactly once.
func (s *IdentityService) AssignRole(ctx context.Context, actor *models.Actor, req dto.AssignRoleRequest) (*models.Identity, error) {
	if err := authorize(actor, models.CapRoleAssign); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid role assignment")
	}

	identity := &models.Identity{SubjectID: req.SubjectID, Role: req.Role}
	if err := s.roles.AssignRole(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "role already assigned")
		}
		return nil, storeFailure(err, "failed to assign role")
	}

	s.logger.Info("role assigned", zap.String("subject_id", identity.SubjectID), zap.String("role", string(identity.Role)))
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionRoleAssign,
		Resource:   "identity",
		ResourceID: stringPtr(identity.SubjectID),
		NewValues:  auditValues(map[string]string{"role": string(identity.Role)}),
	})
	return identity, nil
}
