// Package ports declares the interfaces the cycle scheduler consumes and the
// adapters under pkg/adapters implement.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
)

// Sequence is the controller's opaque token for one submitted move.
type Sequence int64

// MoveGateway issues commands to the motion controller. Move submissions
// return immediately with a sequence token; WaitForMove blocks until the
// controller reports the move's result.
type MoveGateway interface {
	MoveToHub(ctx context.Context, agent, workstate, hub string, speed float64) (Sequence, error)
	MoveToPose(ctx context.Context, agent, workstate string, pose domain.Pose, tol domain.Tolerance,
		mode domain.CompletionMode, kind domain.CompletionType, speed float64) (Sequence, error)
	BlindMove(ctx context.Context, agent, workstate string, pose domain.Pose, mode domain.BlindMode, speed float64) (Sequence, error)
	WaitForMove(ctx context.Context, seq Sequence) (domain.Status, error)

	GetMode(ctx context.Context) (domain.Status, domain.Mode, error)
	ClearFaults(ctx context.Context) (domain.Status, error)
	InitGroup(ctx context.Context, agent, workstate string) (domain.Status, error)
	BeginOperationMode(ctx context.Context) (domain.Status, error)
	SetInterruptBehavior(ctx context.Context, agent string, replanAttempts int, timeout time.Duration) (domain.Status, error)
}

// TopologyService enumerates agents and their reachable hubs.
type TopologyService interface {
	Load(ctx context.Context) (*domain.Topology, error)
}

// EventHandler consumes one event.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus carries cycle lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// ErrNotFound is returned by StateStorage lookups that match nothing.
var ErrNotFound = errors.New("not found")

// StateStorage persists agent snapshots and cycle reports.
type StateStorage interface {
	SaveAgent(ctx context.Context, snap *domain.AgentSnapshot) error
	GetAgent(ctx context.Context, runID, name string) (*domain.AgentSnapshot, error)
	ListAgents(ctx context.Context, runID string) ([]*domain.AgentSnapshot, error)
	SaveReport(ctx context.Context, report *domain.CycleReport) error
	GetReport(ctx context.Context, runID string) (*domain.CycleReport, error)
	ListRuns(ctx context.Context) ([]string, error)
}

// MetricsCollector records cycle and worker pool metrics.
type MetricsCollector interface {
	RecordOperation(kind domain.OperationKind, status domain.Status, duration time.Duration)
	RecordHubCompleted(agent string)
	RecordRetreat(agent string)
	RecordRetry(agent string)
	SetActiveAgents(count int)
	ObserveCycleDuration(agent string, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}

// EventsTopic is the topic every cycle event is published on.
const EventsTopic = "cycle.events"
