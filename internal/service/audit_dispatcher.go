package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/models"
	"github.com/noah-isme/internship-portal-api/pkg/jobs"
)

const auditJobType = "audit_log"

// AuditDispatcher writes audit logs through a background queue so request
// latency does not include the audit insert. It writes synchronously while
// the queue is not running.
type AuditDispatcher struct {
	store   auditLogger
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditDispatcher builds the dispatcher and its queue. metrics may be nil.
func NewAuditDispatcher(store auditLogger, cfg jobs.QueueConfig, metrics *MetricsService) *AuditDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &AuditDispatcher{store: store, metrics: metrics, logger: cfg.Logger}
	d.queue = jobs.NewQueue("audit", d.handle, cfg)
	return d
}

// Start launches the queue workers.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop flushes buffered logs and stops the workers.
func (d *AuditDispatcher) Stop() {
	d.queue.Stop()
}

// CreateAuditLog enqueues log for persistence.
func (d *AuditDispatcher) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if !d.queue.Running() {
		return d.write(ctx, log)
	}
	if err := d.queue.Enqueue(ctx, jobs.Job{ID: log.ID, Type: auditJobType, Payload: *log}); err != nil {
		d.metrics.RecordAuditEvent("failed")
		return err
	}
	d.metrics.RecordAuditEvent("queued")
	return nil
}

func (d *AuditDispatcher) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(models.AuditLog)
	if !ok {
		d.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	return d.write(ctx, &log)
}

func (d *AuditDispatcher) write(ctx context.Context, log *models.AuditLog) error {
	if err := d.store.CreateAuditLog(ctx, log); err != nil {
		d.metrics.RecordAuditEvent("failed")
		return fmt.Errorf("persist audit log %s: %w", log.ID, err)
	}
	d.metrics.RecordAuditEvent("written")
	return nil
}
