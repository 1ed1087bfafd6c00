// Package engine orchestrates the flow graph operations behind the HTTP
// surface: cached editor reads, backed-up writes, backup restore, chat
// traversal steps and bot creation with menu expansion.
package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/meikuraledutech/botflow"
	"github.com/meikuraledutech/botflow/cache"
	"github.com/meikuraledutech/botflow/observability"
)

// DefaultCacheTTL bounds how stale a cached editor read may be.
const DefaultCacheTTL = 5 * time.Minute

// Engine coordinates a Store, a read cache, logging and metrics.
type Engine struct {
	store   botflow.Store
	cache   *cache.Cache
	ttl     time.Duration
	log     *slog.Logger
	metrics observability.MetricsRecorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithCacheTTL overrides the editor-read cache TTL. Zero disables
// caching of reads.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over the given store. By default it logs
// nowhere and records no metrics.
func New(store botflow.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		cache:   cache.New(),
		ttl:     DefaultCacheTTL,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
