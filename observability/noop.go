package observability

import (
	"context"
	"time"

	"github.com/meikuraledutech/botflow"
)

// NoopMetrics is a MetricsRecorder that discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordSync(ctx context.Context, botID int64, result *botflow.SyncResult, duration time.Duration) {
}

func (NoopMetrics) RecordChatStep(ctx context.Context, botID int64, matched bool, duration time.Duration) {
}

func (NoopMetrics) RecordBackup(ctx context.Context, botID int64, op string) {}

func (NoopMetrics) RecordCacheLookup(ctx context.Context, hit bool) {}

var _ MetricsRecorder = NoopMetrics{}
var _ MetricsRecorder = (*otelMetrics)(nil)
