package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/noah-isme/internship-portal-api/api/swagger"
	"github.com/noah-isme/internship-portal-api/internal/handler"
	"github.com/noah-isme/internship-portal-api/internal/repository"
	"github.com/noah-isme/internship-portal-api/internal/service"
	"github.com/noah-isme/internship-portal-api/pkg/cache"
	"github.com/noah-isme/internship-portal-api/pkg/config"
	"github.com/noah-isme/internship-portal-api/pkg/database"
	"github.com/noah-isme/internship-portal-api/pkg/jobs"
	"github.com/noah-isme/internship-portal-api/pkg/logger"
	"github.com/noah-isme/internship-portal-api/pkg/observability"
)

// @title Internship Portal API
// @version 1.0.0
// @description Internship lifecycle engine: approvals, diary, projects, leave and admin queries.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flush, err := observability.InitSentry(cfg)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, cfg.Cache)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	auditRepo := repository.NewAuditRepository(db)
	audit := service.NewAuditDispatcher(auditRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		Logger:     logr.Named("audit"),
	}, metrics)
	audit.Start(context.Background())
	defer audit.Stop()

	identityRepo := repository.NewIdentityRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	profileRepo := repository.NewStudentProfileRepository(db)
	diaryRepo := repository.NewDiaryRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	queryRepo := repository.NewAdminQueryRepository(db)
	resourceRepo := repository.NewResourceRepository(db)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Profiles: profileRepo,
		Batches:  batchRepo,
		Diary:    diaryRepo,
		Projects: projectRepo,
		Leaves:   leaveRepo,
		Queries:  queryRepo,
		Cache:    cacheSvc,
		Logger:   logr,
		Config:   service.DashboardServiceConfig{CacheTTL: cfg.Cache.TTL},
	})

	authz := service.NewAuthorizationService(identityRepo, batchRepo, logr)
	identitySvc := service.NewIdentityService(identityRepo, cfg.Identity, audit, nil, logr)
	batchSvc := service.NewBatchService(batchRepo, identityRepo, audit, nil, logr)
	approvalSvc := service.NewApprovalService(profileRepo, batchRepo, audit, nil, logr,
		service.WithApprovalInvalidator(dashboardSvc))
	diarySvc := service.NewDiaryService(diaryRepo, profileRepo, service.DiaryRules{
		EditWindow:     cfg.Rules.DiaryEditWindow,
		EntriesPerWeek: cfg.Rules.DiaryEntriesPerWeek,
	}, audit, nil, logr, service.WithDiaryInvalidator(dashboardSvc))
	projectSvc := service.NewProjectService(projectRepo, cfg.Rules.ProjectMaxMembers, audit, nil, logr,
		service.WithProjectInvalidator(dashboardSvc))
	ticketSvc := service.NewTicketService(leaveRepo, queryRepo, audit, nil, logr,
		service.WithTicketInvalidator(dashboardSvc))
	resourceSvc := service.NewResourceService(resourceRepo, batchRepo, audit, nil, logr)

	router := newRouter(cfg, logr, routerDeps{
		metrics:   metrics,
		tokens:    identitySvc,
		actors:    authz,
		health:    handler.NewMetricsHandler(metrics, db, cacheRepo),
		identity:  handler.NewIdentityHandler(identitySvc),
		batches:   handler.NewBatchHandler(batchSvc),
		students:  handler.NewStudentHandler(approvalSvc),
		diary:     handler.NewDiaryHandler(diarySvc),
		projects:  handler.NewProjectHandler(projectSvc),
		tickets:   handler.NewTicketHandler(ticketSvc),
		resources: handler.NewResourceHandler(resourceSvc),
		dashboard: handler.NewDashboardHandler(dashboardSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
