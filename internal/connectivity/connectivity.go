// Package connectivity models network reachability as a stream of discrete
// transition events. Detection is decoupled from reaction: observers produce
// Online/Offline transitions on a channel, and the sync coordinator consumes
// them without knowing how they were detected. Tests inject transitions
// through the Manual observer.
package connectivity

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the process-wide connectivity value.
type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Observer emits connectivity transition events. Only transitions are
// emitted; repeated probes with an unchanged result are silent.
type Observer interface {
	Events() <-chan State
}

// Manual is an observer driven entirely by explicit Set calls. Used by tests
// and by CLI flags that pin the connectivity state.
type Manual struct {
	mu      sync.Mutex
	current State
	ch      chan State
}

// NewManual returns a Manual observer starting in the given state.
func NewManual(initial State) *Manual {
	return &Manual{
		current: initial,
		ch:      make(chan State, 8),
	}
}

// Events returns the transition channel.
func (m *Manual) Events() <-chan State {
	return m.ch
}

// Set records a new state, emitting an event only on an actual transition.
func (m *Manual) Set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == m.current {
		return
	}
	m.current = s
	m.ch <- s
}

// State returns the current state.
func (m *Manual) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Monitor probes an HTTP endpoint on an interval and emits transitions. The
// probe is a HEAD request; any response at all counts as reachable.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	log      *zap.Logger

	mu      sync.Mutex
	current State

	ch   chan State
	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a monitor for the given probe URL. It starts in the
// Offline state and begins probing when Start is called.
func NewMonitor(probeURL string, interval time.Duration, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log.Named("connectivity"),
		current:  Offline,
		ch:       make(chan State, 8),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Events returns the transition channel.
func (m *Monitor) Events() <-chan State {
	return m.ch
}

// State returns the last probed state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Start launches the probe loop. An immediate probe runs before the first
// tick so a reachable endpoint is noticed at startup, not one interval later.
func (m *Monitor) Start() {
	go m.run()
}

// Close stops the probe loop and waits for it to exit.
func (m *Monitor) Close() {
	close(m.stop)
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
	}
	m.client.CloseIdleConnections()
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Monitor) probe() {
	state := Offline
	req, err := http.NewRequest(http.MethodHead, m.probeURL, nil)
	if err == nil {
		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			state = Online
		}
	}

	m.mu.Lock()
	changed := state != m.current
	m.current = state
	m.mu.Unlock()

	if !changed {
		return
	}
	m.log.Info("connectivity transition", zap.Stringer("state", state))
	select {
	case m.ch <- state:
	default:
		// A slow consumer drops the oldest pending transition rather than
		// blocking the probe loop; the next probe re-emits on change.
	}
}
