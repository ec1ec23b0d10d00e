package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/pkg/jobs"
	"github.com/noah-isme/internship-portal-api/pkg/middleware/requestid"
)

func TestAuditDispatcherWritesSynchronouslyWhenStopped(t *testing.T) {
	store := &memAudit{}
	metrics := NewMetricsService()
	d := NewAuditDispatcher(store, jobs.QueueConfig{Workers: 1, BufferSize: 4}, metrics)

	require.NoError(t, d.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionBatchCreate}))
	assert.Equal(t, []string{models.AuditActionBatchCreate}, store.actions())
	assert.NotEmpty(t, store.logs[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.auditQueued.WithLabelValues("written")))
}

func TestAuditDispatcherDrainsOnStop(t *testing.T) {
	store := &memAudit{}
	metrics := NewMetricsService()
	d := NewAuditDispatcher(store, jobs.QueueConfig{Workers: 2, BufferSize: 16}, metrics)
	d.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, d.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionDiaryCreate}))
	}
	d.Stop()

	assert.Len(t, store.actions(), 10)
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.auditQueued.WithLabelValues("queued")))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.auditQueued.WithLabelValues("written")))
}

func TestAuditDispatcherRetriesFailedWrites(t *testing.T) {
	store := &flakyAudit{failures: 1}
	d := NewAuditDispatcher(store, jobs.QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionLeaveReview}))
	assert.Eventually(t, func() bool { return store.written() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAuditTrailStampsRequestID(t *testing.T) {
	store := &memAudit{}
	trail := auditTrail{sink: store}
	ctx := context.Background()

	trail.emit(requestid.NewContext(ctx, "req-42"), &models.AuditLog{Action: models.AuditActionQueryCreate})
	require.Len(t, store.logs, 1)
	assert.Equal(t, "req-42", store.logs[0].RequestID)

	store.err = errors.New("down")
	trail.emit(ctx, &models.AuditLog{Action: models.AuditActionQueryCreate})
	assert.Len(t, store.logs, 1)
}

type flakyAudit struct {
	mu       sync.Mutex
	failures int
	count    int
}

func (f *flakyAudit) CreateAuditLog(context.Context, *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("transient")
	}
	f.count++
	return nil
}

func (f *flakyAudit) written() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
