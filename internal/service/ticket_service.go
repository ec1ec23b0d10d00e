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
	"github.com/noah-isme/internship-portal-api/internal/repository"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type leaveStore interface {
	Create(ctx context.Context, leave *models.LeaveRequest) error
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.LeaveRequest, error)
	Review(ctx context.Context, id string, status models.LeaveStatus, reviewerID string, reviewedAt time.Time) error
}

type queryStore interface {
	Create(ctx context.Context, query *models.AdminQuery) error
	FindByID(ctx context.Context, id string) (*models.AdminQuery, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.AdminQuery, error)
	Resolve(ctx context.Context, id string, response *string, resolverID string, resolvedAt time.Time) error
}

// TicketService runs the leave request and admin query review flows.
type TicketService struct {
	leaves    leaveStore
	queries   queryStore
	audit     auditTrail
	cache     dashboardInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// TicketServiceOption configures the service.
type TicketServiceOption func(*TicketService)

// WithTicketClock overrides the review timestamp source.
func WithTicketClock(now func() time.Time) TicketServiceOption {
	return func(s *TicketService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTicketInvalidator wires dashboard cache invalidation.
func WithTicketInvalidator(inv dashboardInvalidator) TicketServiceOption {
	return func(s *TicketService) { s.cache = inv }
}

// NewTicketService constructs the service.
func NewTicketService(leaves leaveStore, queries queryStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...TicketServiceOption) *TicketService {
	if validate == nil {
		validate = newValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TicketService{
		leaves:    leaves,
		queries:   queries,
		audit:     auditTrail{sink: audit, logger: logger},
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateLeave files a pending leave request for the caller.
func (s *TicketService) CreateLeave(ctx context.Context, actor *models.Actor, req dto.CreateLeaveRequest) (*models.LeaveRequest, error) {
	if err := authorize(actor, models.CapLeaveWriteOwn); err != nil {
		return nil, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	req.StartDate = truncateDay(req.StartDate)
	req.EndDate = truncateDay(req.EndDate)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid leave request")
	}

	leave := &models.LeaveRequest{
		UserID:    actor.SubjectID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	}
	if err := s.leaves.Create(ctx, leave); err != nil {
		if errors.Is(err, repository.ErrNotApproved) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not approved")
		}
		return nil, storeFailure(err, "failed to create leave request")
	}

	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionLeaveCreate,
		Resource:   "leave_request",
		ResourceID: stringPtr(leave.ID),
	})
	s.invalidate(ctx, actor.SubjectID)
	return leave, nil
}

// ReviewLeave approves or rejects a pending leave request. Reviewed requests
// are terminal.
func (s *TicketService) ReviewLeave(ctx context.Context, actor *models.Actor, id string, req dto.ReviewLeaveRequest) (*models.LeaveRequest, error) {
	if err := authorize(actor, models.CapLeaveReview); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid leave decision")
	}
	leave, err := s.loadLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.Status != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "leave request has already been reviewed")
	}

	reviewedAt := s.now().UTC()
	if err := s.leaves.Review(ctx, leave.ID, req.Decision, actor.SubjectID, reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "leave request has already been reviewed")
		}
		return nil, storeFailure(err, "failed to review leave request")
	}
	leave.Status = req.Decision
	leave.ReviewedBy = stringPtr(actor.SubjectID)
	leave.ReviewedAt = &reviewedAt

	s.logger.Info("leave request reviewed", zap.String("leave_id", leave.ID), zap.String("status", string(leave.Status)))
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionLeaveReview,
		Resource:   "leave_request",
		ResourceID: stringPtr(leave.ID),
		NewValues:  auditValues(map[string]string{"status": string(leave.Status)}),
	})
	s.invalidate(ctx, leave.UserID)
	return leave, nil
}

// GetLeave returns a leave request to its owner or an admin.
func (s *TicketService) GetLeave(ctx context.Context, actor *models.Actor, id string) (*models.LeaveRequest, error) {
	if !actor.Can(models.CapLeaveRead) && !actor.Can(models.CapLeaveReadOwn) {
		return nil, authorize(actor, models.CapLeaveRead)
	}
	leave, err := s.loadLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Can(models.CapLeaveRead) && leave.UserID != actor.SubjectID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
	}
	return leave, nil
}

// ListLeaves returns the caller's leave requests, or every request for admins.
func (s *TicketService) ListLeaves(ctx context.Context, actor *models.Actor, query dto.TicketQuery) ([]models.LeaveRequest, error) {
	filter, err := s.ticketFilter(actor, query, models.CapLeaveRead, models.CapLeaveReadOwn)
	if err != nil {
		return nil, err
	}
	leaves, err := s.leaves.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(err, "failed to list leave requests")
	}
	return leaves, nil
}

// CreateQuery opens an unresolved admin query for the caller.
func (s *TicketService) CreateQuery(ctx context.Context, actor *models.Actor, req dto.CreateQueryRequest) (*models.AdminQuery, error) {
	if err := authorize(actor, models.CapQueryWriteOwn); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid query")
	}

	query := &models.AdminQuery{
		UserID:      actor.SubjectID,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.queries.Create(ctx, query); err != nil {
		if errors.Is(err, repository.ErrNotApproved) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not approved")
		}
		return nil, storeFailure(err, "failed to create query")
	}

	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionQueryCreate,
		Resource:   "admin_query",
		ResourceID: stringPtr(query.ID),
	})
	s.invalidate(ctx, actor.SubjectID)
	return query, nil
}

// ResolveQuery marks a query resolved. Resolution is irreversible.
func (s *TicketService) ResolveQuery(ctx context.Context, actor *models.Actor, id string, req dto.ResolveQueryRequest) (*models.AdminQuery, error) {
	if err := authorize(actor, models.CapQueryResolve); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid query resolution")
	}
	query, err := s.loadQuery(ctx, id)
	if err != nil {
		return nil, err
	}
	if query.IsResolved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "query is already resolved")
	}

	resolvedAt := s.now().UTC()
	response := optionalString(req.Response)
	if err := s.queries.Resolve(ctx, query.ID, response, actor.SubjectID, resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "query is already resolved")
		}
		return nil, storeFailure(err, "failed to resolve query")
	}
	query.IsResolved = true
	query.Response = response
	query.ResolvedBy = stringPtr(actor.SubjectID)
	query.ResolvedAt = &resolvedAt

	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionQueryResolve,
		Resource:   "admin_query",
		ResourceID: stringPtr(query.ID),
	})
	s.invalidate(ctx, query.UserID)
	return query, nil
}

// GetQuery returns a query to its owner or an admin.
func (s *TicketService) GetQuery(ctx context.Context, actor *models.Actor, id string) (*models.AdminQuery, error) {
	if !actor.Can(models.CapQueryRead) && !actor.Can(models.CapQueryReadOwn) {
		return nil, authorize(actor, models.CapQueryRead)
	}
	query, err := s.loadQuery(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Can(models.CapQueryRead) && query.UserID != actor.SubjectID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "query not found")
	}
	return query, nil
}

// ListQueries returns the caller's queries, or every query for admins.
func (s *TicketService) ListQueries(ctx context.Context, actor *models.Actor, query dto.TicketQuery) ([]models.AdminQuery, error) {
	filter, err := s.ticketFilter(actor, query, models.CapQueryRead, models.CapQueryReadOwn)
	if err != nil {
		return nil, err
	}
	queries, err := s.queries.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(err, "failed to list queries")
	}
	return queries, nil
}

func (s *TicketService) ticketFilter(actor *models.Actor, query dto.TicketQuery, readAll, readOwn models.Capability) (models.TicketFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.TicketFilter{}, invalid(err, "invalid ticket filter")
	}
	filter := models.TicketFilter{
		UserID:      strings.TrimSpace(query.UserID),
		LeaveStatus: query.Status,
		Resolved:    query.Resolved,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}
	switch {
	case actor.Can(readAll):
	case actor.Can(readOwn):
		filter.UserID = actor.SubjectID
	default:
		return models.TicketFilter{}, authorize(actor, readAll)
	}
	return filter, nil
}

func (s *TicketService) loadLeave(ctx context.Context, id string) (*models.LeaveRequest, error) {
	leave, err := s.leaves.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, storeFailure(err, "failed to load leave request")
	}
	return leave, nil
}

func (s *TicketService) loadQuery(ctx context.Context, id string) (*models.AdminQuery, error) {
	query, err := s.queries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "query not found")
		}
		return nil, storeFailure(err, "failed to load query")
	}
	return query, nil
}

func (s *TicketService) invalidate(ctx context.Context, userIDs ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userIDs...)
	}
}
