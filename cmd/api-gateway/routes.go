package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/handler"
	"github.com/noah-isme/internship-portal-api/internal/middleware"
	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/internal/service"
	"github.com/noah-isme/internship-portal-api/pkg/config"
	"github.com/noah-isme/internship-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/internship-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/internship-portal-api/pkg/middleware/requestid"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.IdentityClaims, error)
}

type actorResolver interface {
	Resolve(ctx context.Context, subjectID string) (*models.Actor, error)
}

type routerDeps struct {
	metrics   *service.MetricsService
	tokens    tokenValidator
	actors    actorResolver
	health    *handler.MetricsHandler
	identity  *handler.IdentityHandler
	batches   *handler.BatchHandler
	students  *handler.StudentHandler
	diary     *handler.DiaryHandler
	projects  *handler.ProjectHandler
	tickets   *handler.TicketHandler
	resources *handler.ResourceHandler
	dashboard *handler.DashboardHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.Use(middleware.Identity(deps.tokens, deps.actors))

	api.GET("/me", deps.identity.Me)
	api.POST("/roles", middleware.RequireCapability(models.CapRoleAssign), deps.identity.AssignRole)

	batches := api.Group("/batches")
	batches.GET("", deps.batches.List)
	batches.GET("/:id", deps.batches.Get)
	batches.POST("", middleware.RequireCapability(models.CapBatchManage), deps.batches.Create)
	batches.PUT("/:id", middleware.RequireCapability(models.CapBatchManage), deps.batches.Update)

	students := api.Group("/students")
	students.POST("/register", deps.students.Register)
	students.GET("/me", deps.students.Mine)
	students.GET("/search", middleware.RequireAnyCapability(models.CapStudentRead, models.CapProjectWrite), deps.students.Search)
	students.GET("", middleware.RequireCapability(models.CapStudentRead), deps.students.List)
	students.GET("/:id", deps.students.Get)
	students.POST("/:id/review", middleware.RequireCapability(models.CapStudentReview), deps.students.Review)

	diary := api.Group("/diary")
	diary.POST("", deps.diary.Create)
	diary.GET("", deps.diary.List)
	diary.GET("/aggregate", deps.diary.Aggregate)
	diary.GET("/export", deps.diary.Export)
	diary.GET("/:id", deps.diary.Get)
	diary.PUT("/:id", deps.diary.Update)
	diary.POST("/:id/lock", deps.diary.Lock)

	projects := api.Group("/projects")
	projects.POST("", middleware.RequireCapability(models.CapProjectWrite), deps.projects.Create)
	projects.GET("", middleware.RequireCapability(models.CapProjectRead), deps.projects.List)
	projects.GET("/available", middleware.RequireCapability(models.CapProjectWrite), deps.projects.Available)
	projects.GET("/mine", middleware.RequireCapability(models.CapProjectReadOwn), deps.projects.Mine)
	projects.GET("/:id", middleware.RequireAnyCapability(models.CapProjectRead, models.CapProjectReadOwn), deps.projects.Get)
	projects.POST("/:id/join", middleware.RequireCapability(models.CapProjectWrite), deps.projects.Join)
	projects.POST("/:id/members", middleware.RequireCapability(models.CapProjectWrite), deps.projects.AddMember)

	leaves := api.Group("/leaves")
	leaves.POST("", middleware.RequireCapability(models.CapLeaveWriteOwn), deps.tickets.CreateLeave)
	leaves.GET("", deps.tickets.ListLeaves)
	leaves.GET("/:id", deps.tickets.GetLeave)
	leaves.POST("/:id/review", middleware.RequireCapability(models.CapLeaveReview), deps.tickets.ReviewLeave)

	queries := api.Group("/queries")
	queries.POST("", middleware.RequireCapability(models.CapQueryWriteOwn), deps.tickets.CreateQuery)
	queries.GET("", deps.tickets.ListQueries)
	queries.GET("/:id", deps.tickets.GetQuery)
	queries.POST("/:id/resolve", middleware.RequireCapability(models.CapQueryResolve), deps.tickets.ResolveQuery)

	resources := api.Group("/resources")
	resources.POST("", middleware.RequireCapability(models.CapResourceWrite), deps.resources.Create)
	resources.GET("", middleware.RequireAnyCapability(models.CapResourceRead, models.CapResourceReadOwn), deps.resources.List)

	api.GET("/dashboard", middleware.RequireCapability(models.CapDashboardViewOwn), deps.dashboard.Mine)
	api.GET("/dashboard/students/:userId", middleware.RequireCapability(models.CapStudentRead), deps.dashboard.Student)

	return r
}
