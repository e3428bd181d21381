package cycle

import (
	"time"

	"github.com/aescanero/hubcycle/internal/application/workers"
	"github.com/aescanero/hubcycle/pkg/domain"
)

// Agent is the scheduler's record of one manipulator. Only the scheduler
// loop reads or writes it.
type Agent struct {
	Name           string
	HubSequence    []string
	HubIndex       int
	Active         bool
	Interlocked    bool
	RetreatCapable bool
	State          domain.AgentState
	Target         domain.Pose

	// Retries counts consecutive failed attempts at the current hub.
	Retries int

	StartedAt time.Time
	EndedAt   time.Time

	op *workers.Handle

	hubsCompleted int
	retreats      int
	totalRetries  int
	failures      int
}

func newAgent(name string, sequence []string, retreatCapable bool, start time.Time) *Agent {
	return &Agent{
		Name:           name,
		HubSequence:    sequence,
		Active:         true,
		RetreatCapable: retreatCapable,
		State:          domain.AgentStatePending,
		StartedAt:      start,
	}
}

// CurrentHub is the hub the agent is working towards, or "" once exhausted.
func (a *Agent) CurrentHub() string {
	if a.exhausted() {
		return ""
	}
	return a.HubSequence[a.HubIndex]
}

func (a *Agent) exhausted() bool {
	return a.HubIndex > len(a.HubSequence)-1
}

// finish deactivates the agent; it reports false if it was already done.
func (a *Agent) finish(now time.Time) bool {
	if !a.Active {
		return false
	}
	a.Active = false
	a.State = domain.AgentStateDone
	a.EndedAt = now
	a.op = nil
	return true
}

// Snapshot copies the agent's state for storage and the status API.
func (a *Agent) Snapshot(runID string) *domain.AgentSnapshot {
	snap := &domain.AgentSnapshot{
		RunID:          runID,
		Name:           a.Name,
		State:          a.State,
		HubSequence:    append([]string(nil), a.HubSequence...),
		HubIndex:       a.HubIndex,
		CurrentHub:     a.CurrentHub(),
		Active:         a.Active,
		Interlocked:    a.Interlocked,
		RetreatCapable: a.RetreatCapable,
		Target:         a.Target,
		Retries:        a.Retries,
		HubsCompleted:  a.hubsCompleted,
		Retreats:       a.retreats,
		Failures:       a.failures,
		StartedAt:      a.StartedAt,
		UpdatedAt:      time.Now(),
	}
	if !a.EndedAt.IsZero() {
		ended := a.EndedAt
		snap.EndedAt = &ended
	}
	return snap
}
