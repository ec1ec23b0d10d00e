package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/internal/repository"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/export"
)

type diaryStore interface {
	Create(ctx context.Context, entry *models.DiaryEntry, assign repository.WeekAssigner) error
	FindByID(ctx context.Context, id string) (*models.DiaryEntry, error)
	Update(ctx context.Context, entry *models.DiaryEntry, editableSince time.Time) error
	Lock(ctx context.Context, id string) error
	List(ctx context.Context, filter models.DiaryFilter) ([]models.DiaryEntry, error)
	Aggregate(ctx context.Context, userID string) (*models.DiaryAggregate, error)
}

type ownerProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
}

// DiaryRules holds the week packing and edit window limits.
type DiaryRules struct {
	EditWindow     time.Duration
	EntriesPerWeek int
}

// DefaultDiaryRules returns a 7 day edit window and 7 entries per week.
func DefaultDiaryRules() DiaryRules {
	return DiaryRules{EditWindow: 7 * 24 * time.Hour, EntriesPerWeek: 7}
}

// NextWeekNumber assigns the week of a new entry. W is the owner's latest
// week (1 when empty); the entry goes to W+1 once W already holds perWeek
// entries. Packing follows insertion order, not entry dates.
func NextWeekNumber(cursor models.WeekCursor, perWeek int) int {
	week := cursor.LatestWeek
	if week < 1 {
		week = 1
	}
	if cursor.CountInWeek >= perWeek {
		return week + 1
	}
	return week
}

// IsEditable reports whether the owner may still change entry at now.
func IsEditable(entry models.DiaryEntry, now time.Time, window time.Duration) bool {
	if entry.IsLocked {
		return false
	}
	return now.Sub(entry.CreatedAt) <= window
}

// exportPageSize matches the largest page the diary store serves.
const exportPageSize = 200

// ExportedFile is a rendered export ready for download.
type ExportedFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// DiaryService implements the diary ledger.
type DiaryService struct {
	repo      diaryStore
	profiles  ownerProfileFinder
	rules     DiaryRules
	audit     auditTrail
	cache     dashboardInvalidator
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// DiaryServiceOption configures the service.
type DiaryServiceOption func(*DiaryService)

// WithDiaryClock overrides the time source used for edit windows.
func WithDiaryClock(now func() time.Time) DiaryServiceOption {
	return func(s *DiaryService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDiaryInvalidator wires dashboard cache invalidation.
func WithDiaryInvalidator(inv dashboardInvalidator) DiaryServiceOption {
	return func(s *DiaryService) { s.cache = inv }
}

// NewDiaryService constructs the service.
func NewDiaryService(repo diaryStore, profiles ownerProfileFinder, rules DiaryRules, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...DiaryServiceOption) *DiaryService {
	defaults := DefaultDiaryRules()
	if rules.EditWindow <= 0 {
		rules.EditWindow = defaults.EditWindow
	}
	if rules.EntriesPerWeek <= 0 {
		rules.EntriesPerWeek = defaults.EntriesPerWeek
	}
	if validate == nil {
		validate = newValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DiaryService{
		repo:      repo,
		profiles:  profiles,
		rules:     rules,
		audit:     auditTrail{sink: audit, logger: logger},
		now:       func() time.Time { return time.Now().UTC() },
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create logs a new entry for the calling approved student.
func (s *DiaryService) Create(ctx context.Context, actor *models.Actor, req dto.CreateDiaryEntryRequest) (*models.DiaryEntry, error) {
	if err := authorize(actor, models.CapDiaryWriteOwn); err != nil {
		return nil, err
	}
	req.WorkSummary = strings.TrimSpace(req.WorkSummary)
	req.Learnings = strings.TrimSpace(req.Learnings)
	req.Blockers = strings.TrimSpace(req.Blockers)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid diary entry")
	}

	entry := &models.DiaryEntry{
		UserID:      actor.SubjectID,
		EntryDate:   truncateDay(req.EntryDate),
		Hours:       *req.Hours,
		WorkSummary: req.WorkSummary,
		Learnings:   req.Learnings,
		Blockers:    req.Blockers,
		CreatedAt:   s.now(),
	}
	perWeek := s.rules.EntriesPerWeek
	err := s.repo.Create(ctx, entry, func(cursor models.WeekCursor) int {
		return NextWeekNumber(cursor, perWeek)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotApproved) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not approved")
		}
		return nil, storeFailure(err, "failed to create diary entry")
	}
	entry.Editable = IsEditable(*entry, s.now(), s.rules.EditWindow)

	s.logger.Debug("diary entry created", zap.String("entry_id", entry.ID), zap.Int("week", entry.WeekNumber))
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionDiaryCreate,
		Resource:   "diary_entry",
		ResourceID: stringPtr(entry.ID),
		NewValues:  auditValues(map[string]interface{}{"week_number": entry.WeekNumber, "hours": entry.Hours}),
	})
	s.invalidate(ctx, actor.SubjectID)
	return entry, nil
}

// Update rewrites an entry while it is editable. Week number and owner never
// change.
func (s *DiaryService) Update(ctx context.Context, actor *models.Actor, id string, req dto.UpdateDiaryEntryRequest) (*models.DiaryEntry, error) {
	if err := authorize(actor, models.CapDiaryWriteOwn); err != nil {
		return nil, err
	}
	req.WorkSummary = strings.TrimSpace(req.WorkSummary)
	req.Learnings = strings.TrimSpace(req.Learnings)
	req.Blockers = strings.TrimSpace(req.Blockers)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid diary entry")
	}

	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "diary entry not found")
		}
		return nil, storeFailure(err, "failed to load diary entry")
	}
	if entry.UserID != actor.SubjectID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner can edit a diary entry")
	}
	now := s.now()
	if !IsEditable(*entry, now, s.rules.EditWindow) {
		return nil, appErrors.Clone(appErrors.ErrLocked, "diary entry is locked")
	}

	entry.EntryDate = truncateDay(req.EntryDate)
	entry.Hours = *req.Hours
	entry.WorkSummary = req.WorkSummary
	entry.Learnings = req.Learnings
	entry.Blockers = req.Blockers
	if err := s.repo.Update(ctx, entry, now.Add(-s.rules.EditWindow)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrLocked, "diary entry is locked")
		}
		return nil, storeFailure(err, "failed to update diary entry")
	}
	entry.Editable = IsEditable(*entry, now, s.rules.EditWindow)

	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionDiaryUpdate,
		Resource:   "diary_entry",
		ResourceID: stringPtr(entry.ID),
		NewValues:  auditValues(map[string]interface{}{"hours": entry.Hours}),
	})
	s.invalidate(ctx, actor.SubjectID)
	return entry, nil
}

// Lock makes an entry immutable regardless of its age.
func (s *DiaryService) Lock(ctx context.Context, actor *models.Actor, id string) error {
	if err := authorize(actor, models.CapDiaryLock); err != nil {
		return err
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "diary entry not found")
		}
		return storeFailure(err, "failed to load diary entry")
	}
	if err := s.repo.Lock(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "diary entry not found")
		}
		return storeFailure(err, "failed to lock diary entry")
	}
	s.audit.emit(ctx, &models.AuditLog{
		UserID:     stringPtr(actor.SubjectID),
		Action:     models.AuditActionDiaryLock,
		Resource:   "diary_entry",
		ResourceID: stringPtr(id),
	})
	s.invalidate(ctx, entry.UserID)
	return nil
}

// Get returns one entry visible to the caller with its editable flag.
func (s *DiaryService) Get(ctx context.Context, actor *models.Actor, id string) (*models.DiaryEntry, error) {
	if !actor.Can(models.CapDiaryReadOwn) && !actor.Can(models.CapDiaryRead) {
		return nil, authorize(actor, models.CapDiaryRead)
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "diary entry not found")
		}
		return nil, storeFailure(err, "failed to load diary entry")
	}
	if err := s.checkOwnerVisible(ctx, actor, entry.UserID); err != nil {
		return nil, err
	}
	entry.Editable = IsEditable(*entry, s.now(), s.rules.EditWindow)
	return entry, nil
}

// List returns entries visible to the caller. Students see only their own;
// faculty see entries of students in their batches.
func (s *DiaryService) List(ctx context.Context, actor *models.Actor, query dto.DiaryQuery) ([]models.DiaryEntry, error) {
	filter, err := s.listFilter(actor, query)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(err, "failed to list diary entries")
	}
	now := s.now()
	for i := range entries {
		entries[i].Editable = IsEditable(entries[i], now, s.rules.EditWindow)
	}
	return entries, nil
}

// Aggregate returns total hours and entry count for an owner. It has no side
// effects.
func (s *DiaryService) Aggregate(ctx context.Context, actor *models.Actor, ownerID string) (*models.DiaryAggregate, error) {
	if ownerID == "" && actor != nil {
		ownerID = actor.SubjectID
	}
	if !actor.Can(models.CapDiaryReadOwn) && !actor.Can(models.CapDiaryRead) && !actor.Can(models.CapDashboardViewOwn) {
		return nil, authorize(actor, models.CapDiaryRead)
	}
	if err := s.checkOwnerVisible(ctx, actor, ownerID); err != nil {
		return nil, err
	}
	aggregate, err := s.repo.Aggregate(ctx, ownerID)
	if err != nil {
		return nil, storeFailure(err, "failed to aggregate diary")
	}
	return aggregate, nil
}

// Export renders the visible entries in the requested format.
func (s *DiaryService) Export(ctx context.Context, actor *models.Actor, query dto.DiaryQuery, rawFormat string) (*ExportedFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	entries, err := s.exportEntries(ctx, actor, query)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   "Internship Diary",
		Headers: []string{"Student", "Week", "Date", "Hours", "Work Summary", "Learnings", "Blockers", "Locked"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, e := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":      e.UserID,
			"Week":         strconv.Itoa(e.WeekNumber),
			"Date":         e.EntryDate.Format("2006-01-02"),
			"Hours":        strconv.FormatFloat(e.Hours, 'f', 2, 64),
			"Work Summary": e.WorkSummary,
			"Learnings":    e.Learnings,
			"Blockers":     e.Blockers,
			"Locked":       strconv.FormatBool(!e.Editable),
		})
	}
	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render diary export")
	}
	return &ExportedFile{
		Filename:    fmt.Sprintf("diary-%s.%s", s.now().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// exportEntries walks every page of the caller's visible entries.
func (s *DiaryService) exportEntries(ctx context.Context, actor *models.Actor, query dto.DiaryQuery) ([]models.DiaryEntry, error) {
	query.Limit = exportPageSize
	query.Offset = 0
	var entries []models.DiaryEntry
	for {
		page, err := s.List(ctx, actor, query)
		if err != nil {
			return nil, err
		}
		entries = append(entries, page...)
		if len(page) < exportPageSize {
			return entries, nil
		}
		query.Offset += len(page)
	}
}

func (s *DiaryService) listFilter(actor *models.Actor, query dto.DiaryQuery) (models.DiaryFilter, error) {
	filter := models.DiaryFilter{Week: query.Week, Limit: query.Limit, Offset: query.Offset}
	switch {
	case actor.Can(models.CapDiaryRead):
		filter.UserID = strings.TrimSpace(query.UserID)
		filter.BatchIDs = readScope(actor)
	case actor.Can(models.CapDiaryReadOwn):
		if query.UserID != "" && query.UserID != actor.SubjectID {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "students can only read their own diary")
		}
		filter.UserID = actor.SubjectID
	default:
		return filter, authorize(actor, models.CapDiaryRead)
	}
	return filter, nil
}

// checkOwnerVisible allows owners and scoped staff to read ownerID's diary.
func (s *DiaryService) checkOwnerVisible(ctx context.Context, actor *models.Actor, ownerID string) error {
	if ownerID == actor.SubjectID {
		return nil
	}
	if !actor.Can(models.CapDiaryRead) {
		return appErrors.Clone(appErrors.ErrForbidden, "students can only read their own diary")
	}
	if readScope(actor) == nil {
		return nil
	}
	profile, err := s.profiles.FindByUserID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return storeFailure(err, "failed to load student profile")
	}
	if !inScope(actor, profile.BatchID) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}

func (s *DiaryService) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}
