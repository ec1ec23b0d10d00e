package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

var (
	pendingStudentCaps = []models.Capability{
		models.CapProfileViewOwn,
		models.CapDashboardViewOwn,
	}
	approvedStudentCaps = append(append([]models.Capability{}, pendingStudentCaps...),
		models.CapDiaryWriteOwn, models.CapDiaryReadOwn,
		models.CapLeaveWriteOwn, models.CapLeaveReadOwn,
		models.CapQueryWriteOwn, models.CapQueryReadOwn,
		models.CapProjectWrite, models.CapProjectReadOwn,
		models.CapResourceReadOwn,
	)
	facultyCaps = []models.Capability{
		models.CapBatchRead,
		models.CapStudentRead,
		models.CapDiaryRead,
		models.CapProjectRead,
		models.CapResourceRead,
		models.CapResourceWrite,
		models.CapAssignmentWrite,
	}
)

// ResolveCapabilities derives the capability set of a subject from its role
// and, for students, its approval status. Unknown roles yield the empty set.
func ResolveCapabilities(role models.Role, status models.ApprovalStatus) models.CapabilitySet {
	switch role {
	case models.RoleAdmin:
		return models.NewCapabilitySet(models.AllCapabilities...)
	case models.RoleFaculty:
		return models.NewCapabilitySet(facultyCaps...)
	case models.RoleStudent:
		if status == models.StatusApproved {
			return models.NewCapabilitySet(approvedStudentCaps...)
		}
		return models.NewCapabilitySet(pendingStudentCaps...)
	default:
		return models.NewCapabilitySet()
	}
}

// ScopeFor returns the row scope that read capabilities of role cover.
func ScopeFor(role models.Role) models.Scope {
	switch role {
	case models.RoleAdmin:
		return models.ScopeAll
	case models.RoleFaculty:
		return models.ScopeAssignedBatches
	case models.RoleStudent:
		return models.ScopeSelf
	default:
		return models.ScopeNone
	}
}

type subjectStore interface {
	FindSubject(ctx context.Context, subjectID string) (*models.SubjectRecord, error)
}

type facultyBatchStore interface {
	IDsByFaculty(ctx context.Context, facultyID string) ([]string, error)
}

// AuthorizationService builds request-scoped actors from stored role and
// approval state.
type AuthorizationService struct {
	subjects subjectStore
	batches  facultyBatchStore
	logger   *zap.Logger
}

// NewAuthorizationService constructs the resolver.
func NewAuthorizationService(subjects subjectStore, batches facultyBatchStore, logger *zap.Logger) *AuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationService{subjects: subjects, batches: batches, logger: logger}
}

// Resolve reads the subject's role and student status from the store and
// returns its actor. A subject without a role resolves to an actor holding no
// capabilities. Store failures are returned, never converted into access.
func (s *AuthorizationService) Resolve(ctx context.Context, subjectID string) (*models.Actor, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing subject")
	}

	actor := &models.Actor{
		SubjectID:    subjectID,
		Scope:        models.ScopeNone,
		Capabilities: models.NewCapabilitySet(),
	}

	record, err := s.subjects.FindSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return actor, nil
		}
		s.logger.Warn("subject lookup failed", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, storeFailure(err, "failed to resolve subject")
	}
	if !record.Role.Valid() {
		return actor, nil
	}

	actor.Role = record.Role
	actor.Scope = ScopeFor(record.Role)
	var status models.ApprovalStatus
	if record.StudentStatus != nil {
		status = *record.StudentStatus
	}

	switch record.Role {
	case models.RoleStudent:
		actor.StudentStatus = status
		if record.ProfileID != nil {
			actor.ProfileID = *record.ProfileID
		}
		if record.BatchID != nil {
			actor.BatchID = *record.BatchID
			actor.BatchIDs = []string{*record.BatchID}
		}
	case models.RoleFaculty:
		ids, err := s.batches.IDsByFaculty(ctx, subjectID)
		if err != nil {
			s.logger.Warn("faculty batch lookup failed", zap.String("subject_id", subjectID), zap.Error(err))
			return nil, storeFailure(err, "failed to resolve faculty batches")
		}
		actor.BatchIDs = ids
	}

	actor.Capabilities = ResolveCapabilities(record.Role, status)
	return actor, nil
}

// Require returns an error unless actor holds every capability in caps.
func (s *AuthorizationService) Require(actor *models.Actor, caps ...models.Capability) error {
	return authorize(actor, caps...)
}
