package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type resourceStore interface {
	Create(ctx context.Context, resource *models.Resource) error
	ListByBatches(ctx context.Context, batchIDs []string, kind models.ResourceKind) ([]models.Resource, error)
}

// ResourceService records batch materials and assignments. Files live with
// the upload collaborator; only their storage path is kept here.
type ResourceService struct {
	repo      resourceStore
	batches   batchFinder
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs the service.
func NewResourceService(repo resourceStore, batches batchFinder, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ResourceService {
	if validate == nil {
		validate = newValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{
		repo:      repo,
		batches:   batches,
		audit:     auditTrail{sink: audit, logger: logger},
		validator: validate,
		logger:    logger,
	}
}

// Create records a resource for a batch within the caller's scope.
func (s *ResourceService) Create(ctx context.Context, actor *models.Actor, req dto.CreateResourceRequest) (*models.Resource, error) {
	caps := []models.Capability{models.CapResourceWrite}
	if req.Kind == models.ResourceAssignment {
		caps = append(caps, models.CapAssignmentWrite)
	}
	if err := authorize(actor, caps...); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.StoragePath = strings.TrimSpace(req.StoragePath)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid resource payload")
	}
	if req.Kind == models.ResourceMaterial && req.DueDate != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date only applies to assignments")
	}
	if !inScope(actor, req.BatchID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "batch is outside your assignment")
	}
	if _, err := s.batches.FindByID(ctx, req.BatchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, storeFailure(err, "failed to load batch")
	}

	resource := &models.Resource{
		BatchID:     req.BatchID,
		Title:       req.Title,
		Description: req.Description,
		Kind:        req.Kind,
		StoragePath: req.StoragePath,
		CreatedBy:   actor.SubjectID,
	}
	if req.DueDate != nil {
		due := req.DueDate.UTC()
		resource.DueDate = &due
	}
	if err := s.repo.Create(ctx, resource); err != nil {
		return nil, storeFailure(err, "failed to create resource")
	}

	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionResourceCreate,
		Resource:   "resource",
		ResourceID: stringPtr(resource.ID),
		NewValues:  auditValues(map[string]string{"batch_id": resource.BatchID, "kind": string(resource.Kind)}),
	})
	return resource, nil
}

// List returns resources visible to the caller. Students see their own
// batch; staff see their scope, optionally narrowed to one batch.
func (s *ResourceService) List(ctx context.Context, actor *models.Actor, batchID string, kind models.ResourceKind) ([]models.Resource, error) {
	if kind != "" && kind != models.ResourceMaterial && kind != models.ResourceAssignment {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be material or assignment")
	}

	var scope []string
	switch {
	case actor.Can(models.CapResourceRead):
		scope = readScope(actor)
	case actor.Can(models.CapResourceReadOwn):
		scope = []string{}
		if actor.BatchID != "" {
			scope = []string{actor.BatchID}
		}
	default:
		return nil, authorize(actor, models.CapResourceRead)
	}
	if batchID = strings.TrimSpace(batchID); batchID != "" {
		scope = narrowScope(scope, []string{batchID})
	}

	resources, err := s.repo.ListByBatches(ctx, scope, kind)
	if err != nil {
		return nil, storeFailure(err, "failed to list resources")
	}
	return resources, nil
}

