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
	"github.com/noah-isme/internship-portal-api/internal/repository"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

// DefaultProjectMaxMembers is the team size cap, lead included.
const DefaultProjectMaxMembers = 5

type projectStore interface {
	CreateWithLead(ctx context.Context, project *models.Project) error
	AddMember(ctx context.Context, member *models.ProjectMember, requesterID string, maxMembers int) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	Members(ctx context.Context, projectID string) ([]models.ProjectMember, error)
	ListAvailable(ctx context.Context, subjectID, batchID string, maxMembers int) ([]models.Project, error)
	ListByBatches(ctx context.Context, batchIDs []string) ([]models.Project, error)
	ListByMember(ctx context.Context, subjectID string) ([]models.Project, error)
}

// ProjectService manages team formation and membership.
type ProjectService struct {
	repo       projectStore
	maxMembers int
	audit      auditTrail
	cache      dashboardInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// ProjectServiceOption configures the service.
type ProjectServiceOption func(*ProjectService)

// WithProjectInvalidator wires dashboard cache invalidation.
func WithProjectInvalidator(inv dashboardInvalidator) ProjectServiceOption {
	return func(s *ProjectService) { s.cache = inv }
}

// NewProjectService constructs the service.
func NewProjectService(repo projectStore, maxMembers int, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...ProjectServiceOption) *ProjectService {
	if maxMembers <= 0 {
		maxMembers = DefaultProjectMaxMembers
	}
	if validate == nil {
		validate = newValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ProjectService{
		repo:       repo,
		maxMembers: maxMembers,
		audit:      auditTrail{sink: audit, logger: logger},
		validator:  validate,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateProject forms a project led by the caller. The project row and the
// lead's membership are written in one transaction.
func (s *ProjectService) CreateProject(ctx context.Context, actor *models.Actor, req dto.CreateProjectRequest) (*models.Project, error) {
	if err := authorize(actor, models.CapProjectWrite); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid project payload")
	}

	project := &models.Project{
		Name:        req.Name,
		Description: req.Description,
		LeadID:      actor.SubjectID,
		LeadBatchID: actor.BatchID,
	}
	if err := s.repo.CreateWithLead(ctx, project); err != nil {
		if errors.Is(err, repository.ErrNotApproved) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not approved")
		}
		return nil, storeFailure(err, "failed to create project")
	}

	s.logger.Info("project created", zap.String("project_id", project.ID), zap.String("lead_id", project.LeadID))
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionProjectCreate,
		Resource:   "project",
		ResourceID: stringPtr(project.ID),
		NewValues:  auditValues(map[string]string{"name": project.Name}),
	})
	s.invalidate(ctx, actor.SubjectID)
	return project, nil
}

// JoinProject adds the caller to a project led by a batch-mate.
func (s *ProjectService) JoinProject(ctx context.Context, actor *models.Actor, projectID string) (*models.ProjectMember, error) {
	if err := authorize(actor, models.CapProjectWrite); err != nil {
		return nil, err
	}
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.LeadBatchID == "" || project.LeadBatchID != actor.BatchID {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "project is led by a student from another batch")
	}
	member, err := s.addMember(ctx, project.ID, actor.SubjectID, actor.SubjectID)
	if err != nil {
		return nil, err
	}
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionProjectJoin,
		Resource:   "project",
		ResourceID: stringPtr(project.ID),
	})
	return member, nil
}

// AddMember lets the lead add a student found through the phone search.
// Batch affinity is not enforced on this path.
func (s *ProjectService) AddMember(ctx context.Context, actor *models.Actor, projectID string, req dto.AddMemberRequest) (*models.ProjectMember, error) {
	if err := authorize(actor, models.CapProjectWrite); err != nil {
		return nil, err
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid member payload")
	}
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.LeadID != actor.SubjectID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the project lead can add members")
	}
	member, err := s.addMember(ctx, project.ID, actor.SubjectID, req.SubjectID)
	if err != nil {
		return nil, err
	}
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionProjectAdd,
		Resource:   "project",
		ResourceID: stringPtr(project.ID),
		NewValues:  auditValues(map[string]string{"member_id": req.SubjectID}),
	})
	return member, nil
}

// AvailableProjects lists projects the caller could join: led by a
// batch-mate, not already joined or led by the caller, and not full.
func (s *ProjectService) AvailableProjects(ctx context.Context, actor *models.Actor) ([]models.Project, error) {
	if err := authorize(actor, models.CapProjectWrite); err != nil {
		return nil, err
	}
	if actor.BatchID == "" {
		return []models.Project{}, nil
	}
	projects, err := s.repo.ListAvailable(ctx, actor.SubjectID, actor.BatchID, s.maxMembers)
	if err != nil {
		return nil, storeFailure(err, "failed to list available projects")
	}
	available := projects[:0]
	for _, p := range projects {
		if p.LeadID == actor.SubjectID || p.MemberCount >= s.maxMembers {
			continue
		}
		available = append(available, p)
	}
	return available, nil
}

// ListMine returns the projects the caller leads or belongs to.
func (s *ProjectService) ListMine(ctx context.Context, actor *models.Actor) ([]models.Project, error) {
	if err := authorize(actor, models.CapProjectReadOwn); err != nil {
		return nil, err
	}
	projects, err := s.repo.ListByMember(ctx, actor.SubjectID)
	if err != nil {
		return nil, storeFailure(err, "failed to list projects")
	}
	return projects, nil
}

// List returns projects within a staff member's batch scope.
func (s *ProjectService) List(ctx context.Context, actor *models.Actor) ([]models.Project, error) {
	if err := authorize(actor, models.CapProjectRead); err != nil {
		return nil, err
	}
	projects, err := s.repo.ListByBatches(ctx, readScope(actor))
	if err != nil {
		return nil, storeFailure(err, "failed to list projects")
	}
	return projects, nil
}

// Get returns a project and its roster to members and scoped staff.
func (s *ProjectService) Get(ctx context.Context, actor *models.Actor, id string) (*models.ProjectDetail, error) {
	if !actor.Can(models.CapProjectRead) && !actor.Can(models.CapProjectReadOwn) {
		return nil, authorize(actor, models.CapProjectRead)
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.Members(ctx, project.ID)
	if err != nil {
		return nil, storeFailure(err, "failed to load project members")
	}

	visible := actor.Can(models.CapProjectRead) && inScope(actor, project.LeadBatchID)
	if !visible && actor.Can(models.CapProjectReadOwn) {
		visible = project.LeadBatchID == actor.BatchID || isMember(members, actor.SubjectID)
	}
	if !visible {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}
	return &models.ProjectDetail{Project: *project, Members: members}, nil
}

func (s *ProjectService) load(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, storeFailure(err, "failed to load project")
	}
	return project, nil
}

func (s *ProjectService) addMember(ctx context.Context, projectID, requesterID, subjectID string) (*models.ProjectMember, error) {
	member := &models.ProjectMember{ProjectID: projectID, UserID: subjectID}
	if err := s.repo.AddMember(ctx, member, requesterID, s.maxMembers); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		case errors.Is(err, repository.ErrAlreadyMember):
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "already a member of this project")
		case errors.Is(err, repository.ErrProjectFull):
			return nil, appErrors.Clone(appErrors.ErrCapacity, "project already has the maximum number of members")
		case errors.Is(err, repository.ErrRequesterNotApproved):
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only approved students can add members")
		case errors.Is(err, repository.ErrNotApproved):
			return nil, appErrors.Clone(appErrors.ErrIneligible, "member must be an approved student")
		}
		return nil, storeFailure(err, "failed to add project member")
	}
	s.logger.Info("project member added", zap.String("project_id", projectID), zap.String("subject_id", subjectID))
	s.invalidate(ctx, subjectID)
	return member, nil
}

func (s *ProjectService) invalidate(ctx context.Context, userIDs ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userIDs...)
	}
}

func isMember(members []models.ProjectMember, subjectID string) bool {
	for _, m := range members {
		if m.UserID == subjectID {
			return true
		}
	}
	return false
}
