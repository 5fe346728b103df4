// Package analyzer wires the offline credibility pipeline together: feature
// extraction, heuristic scoring, the similarity cache, the durable queue, and
// the sync coordinator. The Engine replaces the implicit process-wide
// singleton of earlier designs with an explicitly constructed instance and an
// explicit lifecycle, so hosts and tests can run isolated engines side by
// side.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"veracity/internal/cache"
	"veracity/internal/config"
	"veracity/internal/connectivity"
	"veracity/internal/feature"
	"veracity/internal/queue"
	"veracity/internal/scoring"
	"veracity/internal/store"
	"veracity/internal/syncer"
	"veracity/internal/transport"
)

// Engine is the application-facing surface of the offline-resilience layer.
type Engine struct {
	kv    *store.SQLite
	cache *cache.Cache
	queue *queue.Queue
	coord *syncer.Coordinator
	log   *zap.Logger

	// monitor is non-nil only when the engine owns the connectivity probe.
	monitor *connectivity.Monitor

	// sf collapses concurrent Analyze calls for identical text into a single
	// computation.
	sf singleflight.Group
}

// Option overrides a collaborator, mainly for tests and for CLI modes that
// pin connectivity.
type Option func(*options)

type options struct {
	transport transport.Transport
	observer  connectivity.Observer
}

// WithTransport injects a delivery transport.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithObserver injects a connectivity observer.
func WithObserver(obs connectivity.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// New constructs and starts an engine from configuration. Callers own the
// returned engine and must Close it.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kv, err := store.Open(cfg.Storage.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable store: %w", err)
	}

	resultCache, err := cache.Open(kv, log,
		cache.WithCapacity(cfg.Cache.Capacity),
		cache.WithThreshold(cfg.Cache.SimilarityThreshold))
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to open result cache: %w", err)
	}

	q := queue.Open(kv, log)

	e := &Engine{
		kv:    kv,
		cache: resultCache,
		queue: q,
		log:   log.Named("analyzer"),
	}

	tr := o.transport
	if tr == nil {
		tr = transport.NewHTTP(cfg.Remote.BaseURL, cfg.Remote.APIKey, log)
	}

	obs := o.observer
	if obs == nil {
		probeInterval := config.Duration(cfg.Remote.ProbeInterval, 30*time.Second)
		e.monitor = connectivity.NewMonitor(cfg.Remote.BaseURL+"/healthz", probeInterval, log)
		obs = e.monitor
	}

	syncCfg := syncer.Config{
		AttemptTimeout: config.Duration(cfg.Sync.AttemptTimeout, 0),
		RetryCeiling:   cfg.Queue.RetryCeiling,
		BackoffInitial: config.Duration(cfg.Sync.BackoffInitial, 0),
		BackoffMax:     config.Duration(cfg.Sync.BackoffMax, 0),
	}
	e.coord = syncer.New(q, tr, obs, syncCfg, log)

	e.coord.Start()
	if e.monitor != nil {
		e.monitor.Start()
	}

	e.log.Info("engine started",
		zap.String("db", cfg.Storage.DatabasePath),
		zap.Int("cache_capacity", cfg.Cache.Capacity))
	return e, nil
}

// Close stops the coordinator and the connectivity probe and releases the
// store. In-flight delivery attempts are aborted; their items stay queued.
func (e *Engine) Close() error {
	e.coord.Close()
	if e.monitor != nil {
		e.monitor.Close()
	}
	return e.kv.Close()
}

// Analyze returns a credibility verdict for text. It never fails: cache
// trouble degrades to local recomputation, and an internal panic degrades to
// a neutral verdict with an explicit degraded finding.
func (e *Engine) Analyze(text string) scoring.Verdict {
	v, _, _ := e.sf.Do(text, func() (interface{}, error) {
		return e.analyzeOne(text), nil
	})
	verdict, ok := v.(scoring.Verdict)
	if !ok {
		return scoring.Degraded()
	}
	return verdict
}

func (e *Engine) analyzeOne(text string) (verdict scoring.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("analysis panicked, returning degraded verdict", zap.Any("panic", r))
			verdict = scoring.Degraded()
		}
	}()

	vec := feature.Extract(text)

	if entry, ok := e.cache.Lookup(vec); ok {
		e.log.Debug("cache hit", zap.String("entry", entry.ID))
		return entry.Verdict
	}

	verdict = scoring.Score(vec)

	if _, err := e.cache.Insert(vec, verdict); err != nil {
		// Cache unavailability never fails the caller; the computed verdict
		// simply is not memoized.
		e.log.Warn("cache insert failed, continuing uncached", zap.Error(err))
	}
	return verdict
}

// EnqueueForLater durably captures a remote operation for replay once
// connectivity permits. Persistence failures are surfaced: the caller must
// know whether the work was captured.
func (e *Engine) EnqueueForLater(kind queue.Kind, payload []byte) (string, error) {
	return e.queue.Enqueue(kind, payload)
}

// TriggerSync forces a replay pass regardless of coordinator state.
func (e *Engine) TriggerSync() {
	e.coord.TriggerSync()
}

// SyncNow runs one replay pass synchronously and reports whether it was
// clean.
func (e *Engine) SyncNow(ctx context.Context) bool {
	return e.coord.SyncNow(ctx)
}

// QueueDepth returns the number of pending, non-dead-lettered items.
func (e *Engine) QueueDepth() (int, error) {
	return e.queue.Depth()
}

// PendingItems lists the queue oldest-first, for operational inspection.
func (e *Engine) PendingItems() ([]queue.Item, error) {
	return e.queue.ListPending()
}

// DeadLetteredItems lists items excluded from replay.
func (e *Engine) DeadLetteredItems() ([]queue.Item, error) {
	return e.queue.ListDeadLettered()
}

// SyncState reports the coordinator's current state.
func (e *Engine) SyncState() syncer.State {
	return e.coord.State()
}

// CacheSize returns the number of cached verdicts.
func (e *Engine) CacheSize() int {
	return e.cache.Len()
}

// ClearCache drops all cached verdicts. Administrative use only.
func (e *Engine) ClearCache() error {
	return e.cache.Clear()
}
