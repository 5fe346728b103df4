// Package syncer drives replay of the durable operation queue. A coordinator
// reacts to connectivity transitions and backoff timers, sweeping the queue
// oldest-first and delivering each item through the transport collaborator.
// Delivery is at-least-once: an item is removed only after the transport
// confirms success, and a failed item never blocks the items behind it.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"veracity/internal/connectivity"
	"veracity/internal/queue"
	"veracity/internal/transport"
)

// State is the coordinator's position in its replay state machine.
type State int

const (
	Idle State = iota
	Syncing
	Backoff
)

func (s State) String() string {
	switch s {
	case Syncing:
		return "syncing"
	case Backoff:
		return "backoff"
	default:
		return "idle"
	}
}

// Config bounds the coordinator's retry behavior.
type Config struct {
	// AttemptTimeout bounds each individual delivery attempt.
	AttemptTimeout time.Duration
	// RetryCeiling is the attempt count past which an item is dead-lettered.
	RetryCeiling int
	// BackoffInitial is the first wait after a failed pass; it doubles per
	// consecutive failure up to BackoffMax.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig returns the standard coordinator bounds.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 15 * time.Second,
		RetryCeiling:   5,
		BackoffInitial: 5 * time.Second,
		BackoffMax:     5 * time.Minute,
	}
}

// Coordinator replays the queue on connectivity restoration, manual triggers,
// and backoff expiry. Replay passes are sequential sweeps: one item at a
// time, each attempted at most once per pass.
type Coordinator struct {
	queue     *queue.Queue
	transport transport.Transport
	events    <-chan connectivity.State
	cfg       Config
	log       *zap.Logger

	mu    sync.Mutex
	state State

	// passMu serializes replay passes between the loop and SyncNow.
	passMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// New creates a coordinator. Call Start to begin reacting to events and Close
// to shut down.
func New(q *queue.Queue, t transport.Transport, obs connectivity.Observer, cfg Config, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = DefaultConfig().RetryCeiling
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultConfig().BackoffInitial
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = DefaultConfig().BackoffMax
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		queue:     q,
		transport: t,
		events:    obs.Events(),
		cfg:       cfg,
		log:       log.Named("syncer"),
		state:     Idle,
		ctx:       ctx,
		cancel:    cancel,
		trigger:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the event loop.
func (c *Coordinator) Start() {
	go c.run()
}

// Close aborts any in-flight attempt and stops the loop. Items whose delivery
// was cut short stay queued for the next pass.
func (c *Coordinator) Close() {
	c.cancel()
	close(c.stop)
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.log.Warn("coordinator loop did not stop in time")
	}
}

// TriggerSync forces a replay pass regardless of current state. Used on app
// resume. Non-blocking: if a trigger is already pending it is coalesced.
func (c *Coordinator) TriggerSync() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// SyncNow runs one replay pass synchronously and reports whether every
// attempted item was delivered.
func (c *Coordinator) SyncNow(ctx context.Context) bool {
	return c.runPass(ctx)
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) run() {
	defer close(c.done)

	var backoffC <-chan time.Time
	backoff := c.cfg.BackoffInitial

	for {
		select {
		case <-c.stop:
			return
		case st := <-c.events:
			// Only Online transitions start a pass; Offline is observed but
			// never reacted to.
			if st != connectivity.Online {
				continue
			}
		case <-c.trigger:
		case <-backoffC:
		}

		if c.runPass(c.ctx) {
			backoffC = nil
			backoff = c.cfg.BackoffInitial
		} else {
			backoffC = time.After(backoff)
			backoff *= 2
			if backoff > c.cfg.BackoffMax {
				backoff = c.cfg.BackoffMax
			}
		}
	}
}

// runPass sweeps the pending queue once, oldest-first. Each item is attempted
// at most once per pass so a persistently failing item cannot live-lock the
// sweep. Returns true when every attempted item succeeded.
func (c *Coordinator) runPass(ctx context.Context) bool {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	c.setState(Syncing)

	items, err := c.queue.ListPending()
	if err != nil {
		c.log.Error("failed to list pending items", zap.Error(err))
		c.setState(Backoff)
		return false
	}

	failed := false
	delivered := 0
	for _, item := range items {
		if ctx.Err() != nil {
			// Shutdown mid-pass: remaining items stay queued.
			failed = true
			break
		}
		if err := c.attempt(ctx, item); err != nil {
			failed = true
			continue
		}
		delivered++
	}

	if failed {
		c.setState(Backoff)
	} else {
		c.setState(Idle)
	}

	if len(items) > 0 {
		c.log.Info("replay pass finished",
			zap.Int("pending", len(items)),
			zap.Int("delivered", delivered),
			zap.Bool("clean", !failed))
	}
	return !failed
}

// attempt delivers one item with a bounded timeout, applying the success /
// transient-failure / dead-letter policy.
func (c *Coordinator) attempt(ctx context.Context, item queue.Item) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	err := c.transport.Send(attemptCtx, item.Kind, item.Payload)
	if err == nil {
		if rmErr := c.queue.Remove(item.ID); rmErr != nil {
			c.log.Error("failed to remove delivered item", zap.String("id", item.ID), zap.Error(rmErr))
		}
		return nil
	}

	attempts, markErr := c.queue.MarkAttempt(item.ID)
	if markErr != nil {
		c.log.Error("failed to record attempt", zap.String("id", item.ID), zap.Error(markErr))
	}

	if errors.Is(err, transport.ErrPayload) {
		// Structurally invalid: it will never succeed, so retrying is waste.
		c.log.Warn("dead-lettering invalid payload", zap.String("id", item.ID), zap.Error(err))
		if dlErr := c.queue.DeadLetter(item.ID); dlErr != nil {
			c.log.Error("failed to dead-letter item", zap.String("id", item.ID), zap.Error(dlErr))
		}
		return err
	}

	c.log.Warn("delivery attempt failed",
		zap.String("id", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.Int("attempts", attempts),
		zap.Error(err))

	if attempts > c.cfg.RetryCeiling {
		c.log.Warn("retry ceiling exceeded, dead-lettering", zap.String("id", item.ID), zap.Int("attempts", attempts))
		if dlErr := c.queue.DeadLetter(item.ID); dlErr != nil {
			c.log.Error("failed to dead-letter item", zap.String("id", item.ID), zap.Error(dlErr))
		}
	}
	return err
}
