package cycle

import (
	"sync"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
)

// Tracker publishes the run's phase to the status API. It is safe for
// concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	runID     string
	phase     domain.RunPhase
	since     time.Time
	listeners []func(domain.RunPhase)
}

// NewTracker creates a tracker in the starting phase
func NewTracker(runID string) *Tracker {
	return &Tracker{
		runID: runID,
		phase: domain.RunPhaseStarting,
		since: time.Now(),
	}
}

// RunID returns the tracked run
func (t *Tracker) RunID() string {
	return t.runID
}

// Phase returns the current phase and when it was entered
func (t *Tracker) Phase() (domain.RunPhase, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase, t.since
}

// Set moves the run to phase and notifies listeners. Terminal phases are
// final.
func (t *Tracker) Set(phase domain.RunPhase) {
	t.mu.Lock()
	if t.phase.Terminal() || t.phase == phase {
		t.mu.Unlock()
		return
	}
	t.phase = phase
	t.since = time.Now()
	listeners := append([]func(domain.RunPhase){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(phase)
	}
}

// OnChange registers fn to be called after every phase change. fn is
// called once right away with the current phase.
func (t *Tracker) OnChange(fn func(domain.RunPhase)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	phase := t.phase
	t.mu.Unlock()

	fn(phase)
}
