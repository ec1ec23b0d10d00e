package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type memAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
	err  error
}

func (m *memAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userIDs ...string) {
	r.ids = append(r.ids, userIDs...)
}

func studentActor(id, batchID string, status models.ApprovalStatus) *models.Actor {
	return &models.Actor{
		SubjectID:     id,
		Role:          models.RoleStudent,
		StudentStatus: status,
		ProfileID:     "profile-" + id,
		BatchID:       batchID,
		BatchIDs:      []string{batchID},
		Scope:         models.ScopeSelf,
		Capabilities:  ResolveCapabilities(models.RoleStudent, status),
	}
}

func adminActor() *models.Actor {
	return &models.Actor{
		SubjectID:    "admin-1",
		Role:         models.RoleAdmin,
		Scope:        models.ScopeAll,
		Capabilities: ResolveCapabilities(models.RoleAdmin, ""),
	}
}

func facultyActor(batchIDs ...string) *models.Actor {
	return &models.Actor{
		SubjectID:    "faculty-1",
		Role:         models.RoleFaculty,
		BatchIDs:     batchIDs,
		Scope:        models.ScopeAssignedBatches,
		Capabilities: ResolveCapabilities(models.RoleFaculty, ""),
	}
}

func floatPtr(v float64) *float64 { return &v }
