package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/internal/repository"
	"github.com/noah-isme/internship-portal-api/pkg/config"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type stubRoles struct {
	assigned map[string]models.Role
}

func (s *stubRoles) AssignRole(_ context.Context, identity *models.Identity) error {
	if s.assigned == nil {
		s.assigned = map[string]models.Role{}
	}
	if _, ok := s.assigned[identity.SubjectID]; ok {
		return repository.ErrDuplicate
	}
	s.assigned[identity.SubjectID] = identity.Role
	return nil
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestIdentityValidateToken(t *testing.T) {
	cfg := config.IdentityConfig{JWTSecret: "secret", Issuer: "idp"}
	svc := NewIdentityService(&stubRoles{}, cfg, nil, nil, nil)

	valid := signToken(t, "secret", jwt.SigningMethodHS256, models.IdentityClaims{
		Email: "a@example.edu",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "subject-1",
			Issuer:    "idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	claims, err := svc.ValidateToken(valid)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.Subject)
	assert.Equal(t, "a@example.edu", claims.Email)

	tests := map[string]string{
		"wrong secret": signToken(t, "other", jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "s", Issuer: "idp"}),
		"wrong issuer": signToken(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "s", Issuer: "else"}),
		"no subject":   signToken(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "idp"}),
		"expired": signToken(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "s", Issuer: "idp", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}),
		"garbage": "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}

func TestIdentityAssignRole(t *testing.T) {
	audit := &memAudit{}
	roles := &stubRoles{}
	svc := NewIdentityService(roles, config.IdentityConfig{}, audit, nil, nil)
	ctx := context.Background()
	req := dto.AssignRoleRequest{SubjectID: "fac-9", Role: models.RoleFaculty}

	_, err := svc.AssignRole(ctx, facultyActor(), req)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	identity, err := svc.AssignRole(ctx, adminActor(), req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleFaculty, identity.Role)
	assert.Equal(t, []string{models.AuditActionRoleAssign}, audit.actions())

	_, err = svc.AssignRole(ctx, adminActor(), dto.AssignRoleRequest{SubjectID: "fac-9", Role: models.RoleAdmin})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicate))

	_, err = svc.AssignRole(ctx, adminActor(), dto.AssignRoleRequest{SubjectID: "x", Role: "root"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
