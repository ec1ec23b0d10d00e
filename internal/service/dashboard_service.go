package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type diaryAggregator interface {
	Aggregate(ctx context.Context, userID string) (*models.DiaryAggregate, error)
}

type memberProjectLister interface {
	ListByMember(ctx context.Context, subjectID string) ([]models.Project, error)
}

type pendingLeaveCounter interface {
	CountPending(ctx context.Context, userID string) (int, error)
}

type openQueryCounter interface {
	CountOpen(ctx context.Context, userID string) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Profiles ownerProfileFinder
	Batches  batchFinder
	Diary    diaryAggregator
	Projects memberProjectLister
	Leaves   pendingLeaveCounter
	Queries  openQueryCounter
	Cache    *CacheService
	Logger   *zap.Logger
	Config   DashboardServiceConfig
}

// DashboardService composes the per-student summary and keeps it cached.
type DashboardService struct {
	profiles ownerProfileFinder
	batches  batchFinder
	diary    diaryAggregator
	projects memberProjectLister
	leaves   pendingLeaveCounter
	queries  openQueryCounter
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
	cfg      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		profiles: params.Profiles,
		batches:  params.Batches,
		diary:    params.Diary,
		projects: params.Projects,
		leaves:   params.Leaves,
		queries:  params.Queries,
		cache:    params.Cache,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

func dashboardKey(userID string) string {
	return fmt.Sprintf("dashboard:student:%s", userID)
}

// Student returns the dashboard of subjectID, or of the caller when empty.
// The bool reports a cache hit.
func (s *DashboardService) Student(ctx context.Context, actor *models.Actor, subjectID string) (*models.StudentDashboard, bool, error) {
	if actor == nil || actor.SubjectID == "" {
		return nil, false, appErrors.ErrUnauthorized
	}
	subjectID = strings.TrimSpace(subjectID)
	own := subjectID == "" || subjectID == actor.SubjectID
	if own {
		subjectID = actor.SubjectID
		if err := authorize(actor, models.CapDashboardViewOwn); err != nil {
			return nil, false, err
		}
	} else if err := authorize(actor, models.CapStudentRead); err != nil {
		return nil, false, err
	}

	key := dashboardKey(subjectID)
	var cached models.StudentDashboard
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		if own || inScope(actor, cached.BatchID) {
			return &cached, true, nil
		}
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	summary, err := s.compose(ctx, subjectID)
	if err != nil {
		return nil, false, err
	}
	if !own && !inScope(actor, summary.BatchID) {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.cache.Set(ctx, key, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops the cached dashboards of the given students.
func (s *DashboardService) Invalidate(ctx context.Context, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			keys = append(keys, dashboardKey(id))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context, userID string) (*models.StudentDashboard, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, storeFailure(err, "failed to load student profile")
	}

	now := s.now().UTC()
	summary := &models.StudentDashboard{
		UserID:      userID,
		Status:      profile.Status,
		StudentCode: profile.StudentCode,
		BatchID:     profile.BatchID,
		GeneratedAt: now,
	}

	batch, err := s.batches.FindByID(ctx, profile.BatchID)
	switch {
	case err == nil:
		summary.BatchActive = batch.IsActive(now)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, storeFailure(err, "failed to load batch")
	}

	aggregate, err := s.diary.Aggregate(ctx, userID)
	if err != nil {
		return nil, storeFailure(err, "failed to aggregate diary")
	}
	summary.Diary = *aggregate

	projects, err := s.projects.ListByMember(ctx, userID)
	if err != nil {
		return nil, storeFailure(err, "failed to list projects")
	}
	summary.Projects = len(projects)

	if summary.PendingLeaves, err = s.leaves.CountPending(ctx, userID); err != nil {
		return nil, storeFailure(err, "failed to count leave requests")
	}
	if summary.OpenQueries, err = s.queries.CountOpen(ctx, userID); err != nil {
		return nil, storeFailure(err, "failed to count queries")
	}
	return summary, nil
}
