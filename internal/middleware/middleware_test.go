package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/internal/service"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

type stubTokens struct{}

func (stubTokens) ValidateToken(token string) (*models.IdentityClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "stu-1"}}, nil
}

type stubActors struct {
	actor *models.Actor
	err   error
}

func (s stubActors) Resolve(context.Context, string) (*models.Actor, error) {
	return s.actor, s.err
}

func newTestRouter(actors stubActors, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(stubTokens{}, actors))
	handlers := append(guards, func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"subject": actor.SubjectID})
	})
	r.GET("/me", handlers...)
	return r
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Error.Code
}

func approvedStudent() *models.Actor {
	return &models.Actor{
		SubjectID:    "stu-1",
		Role:         models.RoleStudent,
		Capabilities: service.ResolveCapabilities(models.RoleStudent, models.StatusApproved),
	}
}

func TestIdentityMiddleware(t *testing.T) {
	r := newTestRouter(stubActors{actor: approvedStudent()})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestIdentityMiddlewareStoreFailure(t *testing.T) {
	r := newTestRouter(stubActors{err: appErrors.Store(errors.New("db down"), "failed to resolve subject")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, appErrors.ErrStore.Code, errorCode(t, w.Body.Bytes()))
}

func TestRequireCapability(t *testing.T) {
	pending := &models.Actor{
		SubjectID:    "stu-1",
		Role:         models.RoleStudent,
		Capabilities: service.ResolveCapabilities(models.RoleStudent, models.StatusPending),
	}

	allowed := newTestRouter(stubActors{actor: approvedStudent()}, RequireCapability(models.CapDiaryWriteOwn))
	denied := newTestRouter(stubActors{actor: pending}, RequireCapability(models.CapDiaryWriteOwn))
	anyOf := newTestRouter(stubActors{actor: pending}, RequireAnyCapability(models.CapDiaryRead, models.CapDashboardViewOwn))

	for name, tc := range map[string]struct {
		router *gin.Engine
		status int
	}{
		"approved": {allowed, http.StatusOK},
		"pending":  {denied, http.StatusForbidden},
		"any of":   {anyOf, http.StatusOK},
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer good")
			tc.router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestMetricsCountsDomainRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/join", func(c *gin.Context) {
		c.Set(response.ErrorCodeKey, appErrors.ErrCapacity.Code)
		c.Status(http.StatusConflict)
	})
	r.GET("/bad", func(c *gin.Context) {
		c.Set(response.ErrorCodeKey, appErrors.ErrValidation.Code)
		c.Status(http.StatusBadRequest)
	})

	for _, path := range []string{"/join", "/join", "/bad"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out, err := testutil.GatherAndCount(metrics.Registry(), "domain_rejections_total")
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestRecordReadModel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta(), func(c *gin.Context) {
		c.Set(ContextActorKey, approvedStudent())
		c.Next()
	})
	r.GET("/dash/:id", func(c *gin.Context) {
		RecordReadModel(c, ServedReadModel{
			Model:       ReadModelStudentDashboard,
			SubjectID:   c.Param("id"),
			BatchID:     "batch-1",
			CacheHit:    c.Query("cached") == "1",
			GeneratedAt: time.Now().Add(-time.Minute),
		})
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dash/stu-1?cached=1", nil))
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, "student_dashboard", meta["read_model"])
	assert.Equal(t, "stu-1", meta["subject_id"])
	assert.Equal(t, "batch-1", meta["batch_id"])
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, true, meta["self_view"])
	require.Contains(t, meta, "snapshot_age_ms")
	assert.GreaterOrEqual(t, meta["snapshot_age_ms"].(float64), float64(60000))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dash/stu-9", nil))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	meta = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, false, meta["self_view"])
	assert.NotContains(t, meta, "snapshot_age_ms")
}
