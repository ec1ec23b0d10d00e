package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-portal-api/internal/dto"
	"github.com/noah-isme/internship-portal-api/internal/middleware"
	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func withActor(actor *models.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextActorKey, actor)
		c.Next()
	}
}

func testRouter(actor *models.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta(), withActor(actor))
	return r
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

var student = &models.Actor{SubjectID: "stu-1", Role: models.RoleStudent, StudentStatus: models.StatusApproved, BatchID: "b-1"}

type ticketStub struct {
	reviewErr  error
	gotQuery   dto.TicketQuery
	gotResolve dto.ResolveQueryRequest
}

func (s *ticketStub) CreateLeave(_ context.Context, actor *models.Actor, req dto.CreateLeaveRequest) (*models.LeaveRequest, error) {
	return &models.LeaveRequest{ID: "leave-1", UserID: actor.SubjectID, Reason: req.Reason, Status: models.LeavePending}, nil
}

func (s *ticketStub) ReviewLeave(_ context.Context, _ *models.Actor, id string, req dto.ReviewLeaveRequest) (*models.LeaveRequest, error) {
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	return &models.LeaveRequest{ID: id, Status: req.Decision}, nil
}

func (s *ticketStub) GetLeave(_ context.Context, _ *models.Actor, id string) (*models.LeaveRequest, error) {
	return nil, appErrors.ErrNotFound
}

func (s *ticketStub) ListLeaves(_ context.Context, _ *models.Actor, query dto.TicketQuery) ([]models.LeaveRequest, error) {
	s.gotQuery = query
	return []models.LeaveRequest{}, nil
}

func (s *ticketStub) CreateQuery(_ context.Context, actor *models.Actor, req dto.CreateQueryRequest) (*models.AdminQuery, error) {
	return &models.AdminQuery{ID: "q-1", UserID: actor.SubjectID, Title: req.Title}, nil
}

func (s *ticketStub) ResolveQuery(_ context.Context, _ *models.Actor, id string, req dto.ResolveQueryRequest) (*models.AdminQuery, error) {
	s.gotResolve = req
	return &models.AdminQuery{ID: id, IsResolved: true}, nil
}

func (s *ticketStub) GetQuery(_ context.Context, _ *models.Actor, id string) (*models.AdminQuery, error) {
	return &models.AdminQuery{ID: id}, nil
}

func (s *ticketStub) ListQueries(_ context.Context, _ *models.Actor, query dto.TicketQuery) ([]models.AdminQuery, error) {
	s.gotQuery = query
	return []models.AdminQuery{}, nil
}

func TestTicketHandlerCreateLeave(t *testing.T) {
	h := NewTicketHandler(&ticketStub{})
	r := testRouter(student)
	r.POST("/leaves", h.CreateLeave)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/leaves", map[string]string{
		"start_date": "2026-03-12T00:00:00Z",
		"end_date":   "2026-03-13T00:00:00Z",
		"reason":     "family wedding out of town",
	}))

	require.Equal(t, http.StatusCreated, w.Code)
	var leave models.LeaveRequest
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &leave))
	assert.Equal(t, "stu-1", leave.UserID)
}

func TestTicketHandlerRejectsMalformedBody(t *testing.T) {
	h := NewTicketHandler(&ticketStub{})
	r := testRouter(student)
	r.POST("/leaves", h.CreateLeave)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leaves", bytes.NewBufferString(`{"start_date":`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestTicketHandlerReviewTwiceConflicts(t *testing.T) {
	stub := &ticketStub{reviewErr: appErrors.Clone(appErrors.ErrInvalidTransition, "leave request already reviewed")}
	h := NewTicketHandler(stub)
	r := testRouter(&models.Actor{SubjectID: "admin-1", Role: models.RoleAdmin})
	r.POST("/leaves/:id/review", h.ReviewLeave)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/leaves/leave-1/review", map[string]string{"decision": "approved"}))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, decode(t, w).Error.Code)
}

func TestTicketHandlerListBindsFilters(t *testing.T) {
	stub := &ticketStub{}
	h := NewTicketHandler(stub)
	r := testRouter(student)
	r.GET("/queries", h.ListQueries)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queries?resolved=false&limit=10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, stub.gotQuery.Resolved)
	assert.False(t, *stub.gotQuery.Resolved)
	assert.Equal(t, 10, stub.gotQuery.Limit)
}

func TestTicketHandlerResolveWithoutBody(t *testing.T) {
	stub := &ticketStub{}
	h := NewTicketHandler(stub)
	r := testRouter(&models.Actor{SubjectID: "admin-1", Role: models.RoleAdmin})
	r.POST("/queries/:id/resolve", h.ResolveQuery)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/queries/q-1/resolve", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, stub.gotResolve.Response)
}

func TestTicketHandlerGetLeaveNotFound(t *testing.T) {
	h := NewTicketHandler(&ticketStub{})
	r := testRouter(student)
	r.GET("/leaves/:id", h.GetLeave)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaves/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

type projectStub struct {
	joinErr error
}

func (s *projectStub) CreateProject(_ context.Context, actor *models.Actor, req dto.CreateProjectRequest) (*models.Project, error) {
	return &models.Project{ID: "p-1", Name: req.Name, LeadID: actor.SubjectID, MemberCount: 1}, nil
}

func (s *projectStub) JoinProject(_ context.Context, actor *models.Actor, projectID string) (*models.ProjectMember, error) {
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	return &models.ProjectMember{ProjectID: projectID, UserID: actor.SubjectID}, nil
}

func (s *projectStub) AddMember(_ context.Context, _ *models.Actor, projectID string, req dto.AddMemberRequest) (*models.ProjectMember, error) {
	return &models.ProjectMember{ProjectID: projectID, UserID: req.SubjectID}, nil
}

func (s *projectStub) AvailableProjects(context.Context, *models.Actor) ([]models.Project, error) {
	return []models.Project{{ID: "p-2"}}, nil
}

func (s *projectStub) ListMine(context.Context, *models.Actor) ([]models.Project, error) {
	return nil, nil
}

func (s *projectStub) List(context.Context, *models.Actor) ([]models.Project, error) {
	return nil, nil
}

func (s *projectStub) Get(_ context.Context, _ *models.Actor, id string) (*models.ProjectDetail, error) {
	return &models.ProjectDetail{Project: models.Project{ID: id}}, nil
}

func TestProjectHandlerJoin(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "joined", status: http.StatusCreated},
		{name: "full", err: appErrors.ErrCapacity, status: http.StatusConflict, code: appErrors.ErrCapacity.Code},
		{name: "already member", err: appErrors.ErrDuplicate, status: http.StatusConflict, code: appErrors.ErrDuplicate.Code},
		{name: "other batch", err: appErrors.ErrIneligible, status: appErrors.ErrIneligible.Status, code: appErrors.ErrIneligible.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewProjectHandler(&projectStub{joinErr: tc.err})
			r := testRouter(student)
			r.POST("/projects/:id/join", h.Join)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects/p-1/join", nil))

			require.Equal(t, tc.status, w.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, decode(t, w).Error.Code)
			}
		})
	}
}

func TestProjectHandlerAddMemberRequiresSubject(t *testing.T) {
	h := NewProjectHandler(&projectStub{})
	r := testRouter(student)
	r.POST("/projects/:id/members", h.AddMember)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/projects/p-1/members", map[string]string{"subject_id": "stu-2"}))

	require.Equal(t, http.StatusCreated, w.Code)
	var member models.ProjectMember
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &member))
	assert.Equal(t, "stu-2", member.UserID)
}

type resourceStub struct {
	gotBatch string
	gotKind  models.ResourceKind
}

func (s *resourceStub) Create(_ context.Context, _ *models.Actor, req dto.CreateResourceRequest) (*models.Resource, error) {
	return &models.Resource{ID: "r-1", BatchID: req.BatchID, Kind: req.Kind}, nil
}

func (s *resourceStub) List(_ context.Context, _ *models.Actor, batchID string, kind models.ResourceKind) ([]models.Resource, error) {
	s.gotBatch, s.gotKind = batchID, kind
	return []models.Resource{}, nil
}

func TestResourceHandlerListPassesFilters(t *testing.T) {
	stub := &resourceStub{}
	h := NewResourceHandler(stub)
	r := testRouter(student)
	r.GET("/resources", h.List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resources?batchId=b-1&kind=assignment", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b-1", stub.gotBatch)
	assert.Equal(t, models.ResourceAssignment, stub.gotKind)
}

type dashboardStub struct {
	hit        bool
	gotSubject string
}

func (s *dashboardStub) Student(_ context.Context, actor *models.Actor, subjectID string) (*models.StudentDashboard, bool, error) {
	s.gotSubject = subjectID
	if subjectID == "" {
		subjectID = actor.SubjectID
	}
	return &models.StudentDashboard{UserID: subjectID, BatchID: "b1", Projects: 1}, s.hit, nil
}

func TestDashboardHandlerReportsCache(t *testing.T) {
	stub := &dashboardStub{hit: true}
	h := NewDashboardHandler(stub)
	r := testRouter(student)
	r.GET("/dashboard", h.Mine)
	r.GET("/dashboard/students/:userId", h.Student)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, "student_dashboard", env.Meta["read_model"])
	assert.Equal(t, student.SubjectID, env.Meta["subject_id"])
	assert.Equal(t, true, env.Meta["self_view"])
	assert.Empty(t, stub.gotSubject)

	stub.hit = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/students/stu-9", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "stu-9", stub.gotSubject)
	env = decode(t, w)
	assert.Equal(t, "stu-9", env.Meta["subject_id"])
	assert.Equal(t, false, env.Meta["self_view"])
	assert.NotContains(t, env.Meta, "snapshot_age_ms")
}

type pingStub struct{ err error }

func (p pingStub) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := NewMetricsHandler(nil, pingStub{}, pingStub{})
	r := gin.New()
	r.GET("/ready", healthy.Ready)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	degraded := NewMetricsHandler(nil, pingStub{err: errors.New("connection refused")}, nil)
	r = gin.New()
	r.GET("/ready", degraded.Ready)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
