package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/internal/repository"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type profileStore interface {
	Register(ctx context.Context, profile *models.StudentProfile) error
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	List(ctx context.Context, filter models.StudentProfileFilter) ([]models.StudentProfile, int, error)
	SearchByPhone(ctx context.Context, phone string) ([]models.StudentProfile, error)
	UpdateStatus(ctx context.Context, id string, status models.ApprovalStatus, reviewerID string, reviewedAt time.Time) error
	ExistsCode(ctx context.Context, code string) (bool, error)
}

type batchFinder interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

// CodeGenerator produces candidate student codes.
type CodeGenerator func(now time.Time) string

// DefaultStudentCode renders STU-<year>-<6 random hex digits>.
func DefaultStudentCode(now time.Time) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("STU-%d-%s", now.Year(), raw[:6])
}

const codeAttempts = 3

// ApprovalService runs student registration and the approval state machine.
type ApprovalService struct {
	profiles  profileStore
	batches   batchFinder
	audit     auditTrail
	cache     dashboardInvalidator
	codes     CodeGenerator
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithCodeGenerator overrides student code generation.
func WithCodeGenerator(gen CodeGenerator) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if gen != nil {
			s.codes = gen
		}
	}
}

// WithApprovalClock overrides the time source.
func WithApprovalClock(now func() time.Time) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithApprovalInvalidator wires dashboard cache invalidation.
func WithApprovalInvalidator(inv dashboardInvalidator) ApprovalServiceOption {
	return func(s *ApprovalService) { s.cache = inv }
}

// NewApprovalService constructs the service.
func NewApprovalService(profiles profileStore, batches batchFinder, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if validate == nil {
		validate = newValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		profiles:  profiles,
		batches:   batches,
		audit:     auditTrail{sink: audit, logger: logger},
		codes:     DefaultStudentCode,
		now:       func() time.Time { return time.Now().UTC() },
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register creates a pending profile for the calling subject. The subject
// must not hold a non-student role and may register only once.
func (s *ApprovalService) Register(ctx context.Context, actor *models.Actor, req dto.RegisterStudentRequest) (*models.StudentProfile, error) {
	if actor == nil || actor.SubjectID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != "" && actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can register")
	}
	if actor.ProfileID != "" {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "student already registered")
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid registration payload")
	}

	now := s.now()
	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown batch")
		}
		return nil, storeFailure(err, "failed to load batch")
	}
	if batch.EndDate.Before(truncateDay(now)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch has already ended")
	}

	code, err := s.uniqueCode(ctx, now)
	if err != nil {
		return nil, err
	}
	profile := &models.StudentProfile{
		UserID:      actor.SubjectID,
		BatchID:     batch.ID,
		FullName:    req.FullName,
		Phone:       req.Phone,
		StudentCode: code,
		CreatedAt:   now,
	}
	if err := s.profiles.Register(ctx, profile); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "student already registered")
		case errors.Is(err, repository.ErrRoleMismatch):
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can register")
		}
		return nil, storeFailure(err, "failed to register student")
	}

	s.logger.Info("student registered", zap.String("profile_id", profile.ID), zap.String("subject_id", profile.UserID))
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionStudentRegister,
		Resource:   "student_profile",
		ResourceID: stringPtr(profile.ID),
		NewValues:  auditValues(map[string]string{"batch_id": profile.BatchID, "student_code": profile.StudentCode}),
	})
	return profile, nil
}

// Review moves a pending profile to approved or rejected. Both outcomes are
// terminal; reviewing a decided profile fails with InvalidTransition.
func (s *ApprovalService) Review(ctx context.Context, actor *models.Actor, profileID string, req dto.ReviewStudentRequest) (*models.StudentProfile, error) {
	if err := authorize(actor, models.CapStudentReview); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid review decision")
	}

	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, storeFailure(err, "failed to load student profile")
	}
	if profile.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("student profile already %s", profile.Status))
	}

	now := s.now()
	if err := s.profiles.UpdateStatus(ctx, profile.ID, req.Decision, actor.SubjectID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "student profile already reviewed")
		}
		return nil, storeFailure(err, "failed to update student profile")
	}
	previous := profile.Status
	profile.Status = req.Decision
	profile.ReviewedBy = stringPtr(actor.SubjectID)
	profile.ReviewedAt = &now
	profile.UpdatedAt = now

	s.logger.Info("student reviewed",
		zap.String("profile_id", profile.ID),
		zap.String("decision", string(req.Decision)),
		zap.String("reviewer_id", actor.SubjectID),
	)
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionStudentReview,
		Resource:   "student_profile",
		ResourceID: stringPtr(profile.ID),
		NewValues:  auditValues(map[string]string{"from": string(previous), "to": string(profile.Status)}),
	})
	if s.cache != nil {
		s.cache.Invalidate(ctx, profile.UserID)
	}
	return profile, nil
}

// Mine returns the caller's own profile.
func (s *ApprovalService) Mine(ctx context.Context, actor *models.Actor) (*models.StudentProfile, error) {
	if err := authorize(actor, models.CapProfileViewOwn); err != nil {
		return nil, err
	}
	profile, err := s.profiles.FindByUserID(ctx, actor.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, storeFailure(err, "failed to load student profile")
	}
	return profile, nil
}

// Get returns a profile visible to the caller.
func (s *ApprovalService) Get(ctx context.Context, actor *models.Actor, id string) (*models.StudentProfile, error) {
	if err := authorize(actor, models.CapStudentRead); err != nil {
		return nil, err
	}
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, storeFailure(err, "failed to load student profile")
	}
	if !inScope(actor, profile.BatchID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
	}
	return profile, nil
}

// List returns profiles within the caller's batch scope.
func (s *ApprovalService) List(ctx context.Context, actor *models.Actor, filter models.StudentProfileFilter) ([]models.StudentProfile, *models.Pagination, error) {
	if err := authorize(actor, models.CapStudentRead); err != nil {
		return nil, nil, err
	}
	filter.BatchIDs = narrowScope(readScope(actor), filter.BatchIDs)
	filter.Page, filter.PageSize = repository.NormalizePage(filter.Page, filter.PageSize)
	profiles, total, err := s.profiles.List(ctx, filter)
	if err != nil {
		return nil, nil, storeFailure(err, "failed to list student profiles")
	}
	return profiles, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// SearchByPhone finds approved students by exact phone number for the
// add-member flow.
func (s *ApprovalService) SearchByPhone(ctx context.Context, actor *models.Actor, phone string) ([]models.StudentLookup, error) {
	if !actor.Can(models.CapProjectWrite) && !actor.Can(models.CapStudentRead) {
		return nil, authorize(actor, models.CapProjectWrite)
	}
	phone = strings.TrimSpace(phone)
	if len(phone) < 8 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phone must have at least 8 characters")
	}
	profiles, err := s.profiles.SearchByPhone(ctx, phone)
	if err != nil {
		return nil, storeFailure(err, "failed to search students")
	}
	results := make([]models.StudentLookup, 0, len(profiles))
	for _, p := range profiles {
		if p.UserID == actor.SubjectID {
			continue
		}
		results = append(results, models.StudentLookup{
			UserID:      p.UserID,
			FullName:    p.FullName,
			StudentCode: p.StudentCode,
			BatchID:     p.BatchID,
		})
	}
	return results, nil
}

func (s *ApprovalService) uniqueCode(ctx context.Context, now time.Time) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := s.codes(now)
		taken, err := s.profiles.ExistsCode(ctx, code)
		if err != nil {
			return "", storeFailure(err, "failed to check student code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInternal, "could not allocate student code")
}

// narrowScope intersects a requested batch filter with the caller's scope.
// nil means unrestricted.
func narrowScope(scope, requested []string) []string {
	if scope == nil {
		return requested
	}
	if requested == nil {
		return scope
	}
	allowed := make(map[string]struct{}, len(scope))
	for _, id := range scope {
		allowed[id] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
