package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meikuraledutech/botflow"
)

// MetricsRecorder records flow engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSync records a graph synchronization with its outcome.
	RecordSync(ctx context.Context, botID int64, result *botflow.SyncResult, duration time.Duration)

	// RecordChatStep records one traversal step. matched reports whether
	// the message resolved to a node rather than the fallback reply.
	RecordChatStep(ctx context.Context, botID int64, matched bool, duration time.Duration)

	// RecordBackup records a snapshot operation ("create" or "restore").
	RecordBackup(ctx context.Context, botID int64, op string)

	// RecordCacheLookup records a flow cache hit or miss.
	RecordCacheLookup(ctx context.Context, hit bool)
}

type otelMetrics struct {
	syncs        metric.Int64Counter
	syncLatency  metric.Float64Histogram
	droppedEdges metric.Int64Counter
	chatSteps    metric.Int64Counter
	chatLatency  metric.Float64Histogram
	backups      metric.Int64Counter
	cacheLookups metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("botflow")

	syncs, err := meter.Int64Counter("botflow.sync.total",
		metric.WithDescription("Number of graph synchronizations"),
	)
	if err != nil {
		return nil, err
	}

	syncLatency, err := meter.Float64Histogram("botflow.sync.latency_ms",
		metric.WithDescription("Graph synchronization latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	droppedEdges, err := meter.Int64Counter("botflow.sync.dropped_edges",
		metric.WithDescription("Edges dropped during sync for unresolvable endpoints"),
	)
	if err != nil {
		return nil, err
	}

	chatSteps, err := meter.Int64Counter("botflow.chat.steps",
		metric.WithDescription("Number of chat traversal steps"),
	)
	if err != nil {
		return nil, err
	}

	chatLatency, err := meter.Float64Histogram("botflow.chat.latency_ms",
		metric.WithDescription("Chat step latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	backups, err := meter.Int64Counter("botflow.backup.operations",
		metric.WithDescription("Number of backup create and restore operations"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter("botflow.cache.lookups",
		metric.WithDescription("Flow cache lookups, tagged by hit or miss"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		syncs:        syncs,
		syncLatency:  syncLatency,
		droppedEdges: droppedEdges,
		chatSteps:    chatSteps,
		chatLatency:  chatLatency,
		backups:      backups,
		cacheLookups: cacheLookups,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider; configure it before
// calling this function.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordSync(ctx context.Context, botID int64, result *botflow.SyncResult, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Int64("bot_id", botID),
	}
	m.syncs.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.syncLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if result != nil && result.DroppedEdges > 0 {
		m.droppedEdges.Add(ctx, int64(result.DroppedEdges), metric.WithAttributes(attrs...))
	}
}

func (m *otelMetrics) RecordChatStep(ctx context.Context, botID int64, matched bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Int64("bot_id", botID),
		attribute.Bool("matched", matched),
	}
	m.chatSteps.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.chatLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

func (m *otelMetrics) RecordBackup(ctx context.Context, botID int64, op string) {
	m.backups.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("bot_id", botID),
		attribute.String("operation", op),
	))
}

func (m *otelMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("hit", hit),
	))
}
