package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type batchStore interface {
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, error)
}

type roleFinder interface {
	FindRole(ctx context.Context, subjectID string) (*models.Identity, error)
}

// BatchService manages internship cohorts.
type BatchService struct {
	repo      batchStore
	roles     roleFinder
	audit     auditTrail
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs the service.
func NewBatchService(repo batchStore, roles roleFinder, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = newValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		repo:      repo,
		roles:     roles,
		audit:     auditTrail{sink: audit, logger: logger},
		now:       func() time.Time { return time.Now().UTC() },
		validator: validate,
		logger:    logger,
	}
}

// Create adds a batch.
func (s *BatchService) Create(ctx context.Context, actor *models.Actor, req dto.UpsertBatchRequest) (*models.Batch, error) {
	if err := authorize(actor, models.CapBatchManage); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid batch payload")
	}
	faculty, err := s.checkFaculty(ctx, req.FacultyID)
	if err != nil {
		return nil, err
	}
	batch := &models.Batch{
		Name:      req.Name,
		StartDate: truncateDay(req.StartDate),
		EndDate:   truncateDay(req.EndDate),
		FacultyID: faculty,
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, storeFailure(err, "failed to create batch")
	}
	batch.Active = batch.IsActive(s.now())
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionBatchCreate,
		Resource:   "batch",
		ResourceID: stringPtr(batch.ID),
		NewValues:  auditValues(batch),
	})
	return batch, nil
}

// Update replaces a batch definition.
func (s *BatchService) Update(ctx context.Context, actor *models.Actor, id string, req dto.UpsertBatchRequest) (*models.Batch, error) {
	if err := authorize(actor, models.CapBatchManage); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid batch payload")
	}
	faculty, err := s.checkFaculty(ctx, req.FacultyID)
	if err != nil {
		return nil, err
	}
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, storeFailure(err, "failed to load batch")
	}
	batch.Name = req.Name
	batch.StartDate = truncateDay(req.StartDate)
	batch.EndDate = truncateDay(req.EndDate)
	batch.FacultyID = faculty
	if err := s.repo.Update(ctx, batch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, storeFailure(err, "failed to update batch")
	}
	batch.Active = batch.IsActive(s.now())
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionBatchUpdate,
		Resource:   "batch",
		ResourceID: stringPtr(batch.ID),
		NewValues:  auditValues(batch),
	})
	return batch, nil
}

// Get returns a batch within the caller's scope.
func (s *BatchService) Get(ctx context.Context, actor *models.Actor, id string) (*models.Batch, error) {
	if !actor.Can(models.CapBatchRead) && !(actor.Can(models.CapProfileViewOwn) && actor.BatchID == id) {
		return nil, authorize(actor, models.CapBatchRead)
	}
	if actor.Can(models.CapBatchRead) && !inScope(actor, id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, storeFailure(err, "failed to load batch")
	}
	batch.Active = batch.IsActive(s.now())
	return batch, nil
}

// List returns batches within the caller's scope. Unregistered subjects may
// list every batch so they can pick one at registration.
func (s *BatchService) List(ctx context.Context, actor *models.Actor) ([]models.Batch, error) {
	if actor == nil || actor.SubjectID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.BatchFilter{}
	if actor.Can(models.CapBatchRead) {
		filter.IDs = readScope(actor)
	} else if actor.Role != "" && actor.Role != models.RoleStudent {
		return nil, authorize(actor, models.CapBatchRead)
	}
	batches, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(err, "failed to list batches")
	}
	now := s.now()
	for i := range batches {
		batches[i].Active = batches[i].IsActive(now)
	}
	return batches, nil
}

// checkFaculty verifies that an assigned faculty id holds the faculty role.
func (s *BatchService) checkFaculty(ctx context.Context, id *string) (*string, error) {
	if id == nil {
		return nil, nil
	}
	faculty := optionalString(*id)
	if faculty == nil {
		return nil, nil
	}
	identity, err := s.roles.FindRole(ctx, *faculty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "faculty_id must reference a faculty member")
		}
		return nil, storeFailure(err, "failed to load faculty")
	}
	if identity.Role != models.RoleFaculty {
		return nil, appErrors.Clone(appErrors.ErrValidation, "faculty_id must reference a faculty member")
	}
	return faculty, nil
}
