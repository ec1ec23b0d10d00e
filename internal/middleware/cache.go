package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	readModelKey    = "read_model"
	subjectKey      = "subject_id"
	batchKey        = "batch_id"
	cacheHitKey     = "cache_hit"
	selfViewKey     = "self_view"
	snapshotAgeKey  = "snapshot_age_ms"
	cacheHeader     = "X-Cache"
)

// ReadModel names a cached projection served by a handler.
type ReadModel string

// ReadModelStudentDashboard is the per-student dashboard summary.
const ReadModelStudentDashboard ReadModel = "student_dashboard"

// ServedReadModel describes the projection written to the response.
type ServedReadModel struct {
	Model       ReadModel
	SubjectID   string
	BatchID     string
	CacheHit    bool
	GeneratedAt time.Time
}

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := ensureMeta(c)
		if _, exists := meta["processing_time_ms"]; !exists {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// RecordReadModel stores which student projection was served and whether it
// came from cache. The cache outcome is mirrored onto the X-Cache header.
// self_view is set when the resolved actor is the student being shown, and
// snapshot_age_ms only for cached snapshots.
func RecordReadModel(c *gin.Context, served ServedReadModel) {
	meta := ensureMeta(c)
	meta[readModelKey] = string(served.Model)
	meta[subjectKey] = served.SubjectID
	if served.BatchID != "" {
		meta[batchKey] = served.BatchID
	}
	meta[cacheHitKey] = served.CacheHit
	if actor, ok := ActorFrom(c); ok {
		meta[selfViewKey] = actor.SubjectID == served.SubjectID
	}
	if served.CacheHit && !served.GeneratedAt.IsZero() {
		meta[snapshotAgeKey] = time.Since(served.GeneratedAt).Milliseconds()
	}
	if served.CacheHit {
		c.Header(cacheHeader, "HIT")
	} else {
		c.Header(cacheHeader, "MISS")
	}
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
