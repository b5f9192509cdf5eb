package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/observability/metrics"
	"github.com/google/uuid"
)

// Monitored metric names.
const (
	MetricGenerationTime   = "generation_time"
	MetricCacheHitRate     = "cache_hit_rate"
	MetricParallelOpsRatio = "parallel_ops_ratio"
	MetricBufferReuseRatio = "buffer_reuse_ratio"
)

const remediationTrigger = 3

// Thresholds bound the validator's own performance counters. Crossing one
// raises a PerformanceAlert; three consecutive HIGH alerts for the same
// metric trigger exactly one automated remediation.
type Thresholds struct {
	MaxGenerationTime   time.Duration
	MinCacheHitRate     float64
	MaxParallelOpsRatio float64
	MaxBufferReuseRatio float64
}

func defaultThresholds() Thresholds {
	return Thresholds{
		MaxGenerationTime:   10 * time.Millisecond,
		MinCacheHitRate:     0.3,
		MaxParallelOpsRatio: 0.5,
		MaxBufferReuseRatio: 0.9,
	}
}

// AlertSink is the external alert-persistence contract.
type AlertSink interface {
	PersistAlert(ctx context.Context, alert models.PerformanceAlert) error
	GetActiveAlerts(ctx context.Context) ([]models.PerformanceAlert, error)
	MarkRemediationApplied(ctx context.Context, alertID string) error
	MarkAlertResolved(ctx context.Context, alertID string) error
}

type perfCounters struct {
	cacheHits    int64
	cacheMisses  int64
	merkleCalls  int64
	parallelOps  int64
	bufferReuses int64
	maxTreeDepth int
	generations  int64
	totalGenTime time.Duration
}

// PerformanceMetrics is a point-in-time snapshot of the validator's
// self-monitoring counters and current tunables.
type PerformanceMetrics struct {
	CacheHits         int64         `json:"cache_hits"`
	CacheMisses       int64         `json:"cache_misses"`
	CacheHitRate      float64       `json:"cache_hit_rate"`
	CacheSize         int           `json:"cache_size"`
	AvgGenerationTime time.Duration `json:"avg_generation_time"`
	ParallelOps       int64         `json:"parallel_ops"`
	ParallelOpsRatio  float64       `json:"parallel_ops_ratio"`
	BufferReuses      int64         `json:"buffer_reuses"`
	BufferReuseRatio  float64       `json:"buffer_reuse_ratio"`
	MaxTreeDepth      int           `json:"max_tree_depth"`
	TreeHeight        int           `json:"tree_height"`
	ParallelChunkSize int           `json:"parallel_chunk_size"`
	ChainLength       int           `json:"chain_length"`
}

// Metrics snapshots the counters and re-evaluates every threshold, driving
// the per-metric escalation state machine.
func (v *Validator) Metrics(ctx context.Context) PerformanceMetrics {
	v.mu.Lock()
	defer v.mu.Unlock()

	snapshot := v.snapshotLocked()
	v.evaluateThresholdsLocked(ctx, snapshot)
	metrics.ObserveCacheHitRate(snapshot.CacheHitRate)
	return snapshot
}

func (v *Validator) snapshotLocked() PerformanceMetrics {
	m := PerformanceMetrics{
		CacheHits:         v.perf.cacheHits,
		CacheMisses:       v.perf.cacheMisses,
		CacheSize:         v.cache.len(),
		ParallelOps:       v.perf.parallelOps,
		BufferReuses:      v.perf.bufferReuses,
		MaxTreeDepth:      v.perf.maxTreeDepth,
		TreeHeight:        v.treeHeight,
		ParallelChunkSize: v.parallelChunkSize,
		ChainLength:       len(v.chain),
	}
	if lookups := m.CacheHits + m.CacheMisses; lookups > 0 {
		m.CacheHitRate = float64(m.CacheHits) / float64(lookups)
	}
	if v.perf.generations > 0 {
		m.AvgGenerationTime = v.perf.totalGenTime / time.Duration(v.perf.generations)
	}
	if v.perf.merkleCalls > 0 {
		m.ParallelOpsRatio = float64(v.perf.parallelOps) / float64(v.perf.merkleCalls)
		m.BufferReuseRatio = float64(v.perf.bufferReuses) / float64(v.perf.merkleCalls)
	}
	return m
}

func (v *Validator) evaluateThresholdsLocked(ctx context.Context, m PerformanceMetrics) {
	// high-is-bad metrics: ratio = observed / limit
	v.checkMetricLocked(ctx, MetricGenerationTime,
		float64(m.AvgGenerationTime), float64(v.thresholds.MaxGenerationTime),
		ratioHighBad(float64(m.AvgGenerationTime), float64(v.thresholds.MaxGenerationTime)),
		"shrink Merkle tree height")
	v.checkMetricLocked(ctx, MetricParallelOpsRatio,
		m.ParallelOpsRatio, v.thresholds.MaxParallelOpsRatio,
		ratioHighBad(m.ParallelOpsRatio, v.thresholds.MaxParallelOpsRatio),
		"double parallel chunk size")
	v.checkMetricLocked(ctx, MetricBufferReuseRatio,
		m.BufferReuseRatio, v.thresholds.MaxBufferReuseRatio,
		ratioHighBad(m.BufferReuseRatio, v.thresholds.MaxBufferReuseRatio),
		"reset buffer reuse counter")

	// low-is-bad metric, mirrored: ratio = limit / observed. Only meaningful
	// once the cache has seen traffic.
	if m.CacheHits+m.CacheMisses > 0 {
		v.checkMetricLocked(ctx, MetricCacheHitRate,
			m.CacheHitRate, v.thresholds.MinCacheHitRate,
			ratioLowBad(m.CacheHitRate, v.thresholds.MinCacheHitRate),
			"clear Merkle cache")
	}
}

func ratioHighBad(observed, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return observed / limit
}

func ratioLowBad(observed, limit float64) float64 {
	if observed <= 0 {
		return 2.0
	}
	return limit / observed
}

// checkMetricLocked is one step of the escalation state machine:
// Normal -> Alerting(1) -> Alerting(2) -> Alerting(3)=Remediate -> Normal.
// Anything below a HIGH-severity alert resets the streak.
func (v *Validator) checkMetricLocked(ctx context.Context, metric string, value, threshold, ratio float64, remediation string) {
	severity := severityForRatio(ratio)
	if severity == "" {
		v.escalation[metric] = 0
		return
	}

	alert := models.PerformanceAlert{
		ID:          uuid.New().String(),
		Message:     fmt.Sprintf("%s crossed threshold (%.4f vs %.4f)", metric, value, threshold),
		Severity:    severity,
		Metric:      metric,
		Value:       value,
		Threshold:   threshold,
		Remediation: remediation,
		CreatedAt:   time.Now(),
	}
	metrics.IncAlertsRaised()
	if v.sink != nil {
		if err := v.sink.PersistAlert(ctx, alert); err != nil {
			logger.Log.WithError(err).WithField("metric", metric).Error("Failed to persist performance alert")
		}
	}

	if severity != models.SeverityHigh {
		v.escalation[metric] = 0
		return
	}

	v.escalation[metric]++
	if v.escalation[metric] < remediationTrigger {
		return
	}

	v.remediateLocked(metric)
	v.escalation[metric] = 0
	metrics.IncRemediationsRun()
	if v.sink != nil {
		if err := v.sink.MarkRemediationApplied(ctx, alert.ID); err != nil {
			logger.Log.WithError(err).WithField("alert_id", alert.ID).Error("Failed to mark remediation applied")
		}
		if err := v.sink.MarkAlertResolved(ctx, alert.ID); err != nil {
			logger.Log.WithError(err).WithField("alert_id", alert.ID).Error("Failed to mark alert resolved")
		}
	}
}

// severityForRatio tiers at 1.0x, 1.5x and 2.0x of the threshold.
func severityForRatio(ratio float64) string {
	switch {
	case ratio >= 2.0:
		return models.SeverityHigh
	case ratio >= 1.5:
		return models.SeverityMedium
	case ratio >= 1.0:
		return models.SeverityLow
	default:
		return ""
	}
}

func (v *Validator) remediateLocked(metric string) {
	switch metric {
	case MetricGenerationTime:
		if v.treeHeight > 2 {
			v.treeHeight /= 2
		}
	case MetricCacheHitRate:
		v.cache.clear()
		v.perf.cacheHits = 0
		v.perf.cacheMisses = 0
	case MetricParallelOpsRatio:
		v.parallelChunkSize *= 2
	case MetricBufferReuseRatio:
		v.perf.bufferReuses = 0
	}

	logger.Log.WithFields(map[string]interface{}{
		"metric":              metric,
		"tree_height":         v.treeHeight,
		"parallel_chunk_size": v.parallelChunkSize,
	}).Warn("Automated remediation applied")
}
