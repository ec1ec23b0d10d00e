package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCache struct{ memCache }

func (b *brokenCache) Get(context.Context, string, interface{}) error {
	return errors.New("redis unavailable")
}

func TestCacheServiceHitMissMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemCache(), metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", map[string]int{"a": 1}, 0))
	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))

	require.NoError(t, svc.Delete(ctx, "k"))
	hit, _ = svc.Get(ctx, "k", &out)
	assert.False(t, hit)
}

func TestCacheServiceDisabledAndFailing(t *testing.T) {
	ctx := context.Background()
	var nilSvc *CacheService
	hit, err := nilSvc.Get(ctx, "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, nilSvc.Delete(ctx, "k"))

	disabled := NewCacheService(newMemCache(), nil, 0, nil, false)
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.Set(ctx, "k", 1, 0))

	broken := NewCacheService(&brokenCache{memCache: *newMemCache()}, nil, 0, nil, true)
	hit, err = broken.Get(ctx, "k", &struct{}{})
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestMetricsRecordRejection(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordRejection("CAPACITY_EXCEEDED")
	metrics.RecordRejection("CAPACITY_EXCEEDED")
	metrics.RecordRejection("")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.rejections.WithLabelValues("CAPACITY_EXCEEDED")))

	var nilMetrics *MetricsService
	nilMetrics.RecordRejection("LOCKED")
	nilMetrics.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
}
