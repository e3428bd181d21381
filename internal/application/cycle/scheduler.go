package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/hubcycle/internal/application/workers"
	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Submitter queues operations for execution
type Submitter interface {
	Submit(ctx context.Context, task workers.Task) (*workers.Handle, error)
}

// Options are the per-run cycle parameters
type Options struct {
	RunID          string
	Workstate      string
	StagingHub     string
	Speed          float64
	Tolerance      domain.Tolerance
	CompletionMode domain.CompletionMode
	CompletionType domain.CompletionType

	// MaxRetries caps in-place retries at one hub before the agent is sent
	// through a staging retreat. 0 means unbounded.
	MaxRetries int
}

// Config holds the scheduler's collaborators
type Config struct {
	Gateway ports.MoveGateway
	Pool    Submitter
	Targets *TargetGenerator
	Events  ports.EventBus
	Storage ports.StateStorage
	Metrics ports.MetricsCollector
	Logger  *zap.Logger
	Options Options
}

// Scheduler drives every agent through its hub sequence
type Scheduler struct {
	gateway ports.MoveGateway
	pool    Submitter
	targets *TargetGenerator
	events  ports.EventBus
	storage ports.StateStorage
	metrics ports.MetricsCollector
	logger  *zap.Logger
	opts    Options

	agents     []*Agent
	retreatIdx int
	startTime  time.Time
	started    bool

	// wake is signalled by workers when any operation completes
	wake chan struct{}
}

// NewScheduler creates a scheduler for one run
func NewScheduler(cfg *Config) *Scheduler {
	opts := cfg.Options
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	return &Scheduler{
		gateway: cfg.Gateway,
		pool:    cfg.Pool,
		targets: cfg.Targets,
		events:  cfg.Events,
		storage: cfg.Storage,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With(zap.String("run_id", opts.RunID)),
		opts:    opts,
		wake:    make(chan struct{}, 1),
	}
}

// RunID identifies this run in storage and events
func (s *Scheduler) RunID() string {
	return s.opts.RunID
}

// Run executes the hub cycle for the named agents and blocks until every
// agent has finished its sequence and been retracted to staging. Failed moves
// are handled by the interlock protocol and never returned; errors come only
// from cancellation or an unusable worker pool.
func (s *Scheduler) Run(ctx context.Context, names []string, assign *Assignment) (*domain.CycleReport, error) {
	if s.started {
		return nil, errors.New("scheduler already ran")
	}
	s.started = true

	if len(names) != len(assign.Sequences) {
		return nil, fmt.Errorf("%d agents but %d hub sequences", len(names), len(assign.Sequences))
	}
	if assign.RetreatIdx < 0 || assign.RetreatIdx >= len(names) {
		return nil, fmt.Errorf("retreat agent index %d out of range", assign.RetreatIdx)
	}

	s.startTime = time.Now()
	s.retreatIdx = assign.RetreatIdx
	s.agents = make([]*Agent, len(names))
	for i, name := range names {
		s.agents[i] = newAgent(name, assign.Sequences[i], i == assign.RetreatIdx, s.startTime)
	}

	s.logger.Info("beginning hub cycle",
		zap.Int("agents", len(s.agents)),
		zap.String("retreat_agent", names[s.retreatIdx]))
	s.publish(ctx, domain.EventTypeCycleStarted, "", map[string]interface{}{
		"agents":        names,
		"retreat_agent": names[s.retreatIdx],
	})
	s.metrics.SetActiveAgents(len(s.agents))

	// Highest index first, matching the cell's startup order.
	for i := len(s.agents) - 1; i >= 0; i-- {
		if err := s.dispatchFirst(ctx, s.agents[i]); err != nil {
			return nil, err
		}
	}

	for s.activeCount() > 0 {
		select {
		case <-s.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := s.tick(ctx); err != nil {
			return nil, err
		}
	}

	final, err := s.retreatAll(ctx)
	if err != nil {
		return nil, err
	}

	return s.report(ctx, final), nil
}

// Agents returns snapshots of every agent. It must not be called while Run
// is in progress; use the state storage for live status.
func (s *Scheduler) Agents() []*domain.AgentSnapshot {
	snaps := make([]*domain.AgentSnapshot, len(s.agents))
	for i, a := range s.agents {
		snaps[i] = a.Snapshot(s.opts.RunID)
	}
	return snaps
}

// dispatchFirst starts an agent on the first hub of its sequence
func (s *Scheduler) dispatchFirst(ctx context.Context, a *Agent) error {
	if a.exhausted() {
		s.logger.Warn("agent has an empty hub sequence", zap.String("agent", a.Name))
		s.finish(ctx, a)
		return nil
	}
	a.Target = s.targets.Acquire(a.Name)
	return s.submitPickAndPlace(ctx, a)
}

// tick consumes every completed operation, in agent order
func (s *Scheduler) tick(ctx context.Context) error {
	for i, a := range s.agents {
		if !a.Active || a.op == nil {
			continue
		}
		status, ok := a.op.Poll()
		if !ok {
			continue
		}
		a.op = nil
		if err := s.advance(ctx, i, a, status); err != nil {
			return err
		}
	}
	return nil
}

// advance applies the interlock state machine to a completed operation
func (s *Scheduler) advance(ctx context.Context, idx int, a *Agent, status domain.Status) error {
	switch {
	case status.OK() && !a.Interlocked:
		hub := a.CurrentHub()
		a.HubIndex++
		a.hubsCompleted++
		a.Retries = 0
		s.logger.Info("agent completed move to hub",
			zap.String("agent", a.Name),
			zap.String("hub", hub),
			zap.Int("hub_index", a.HubIndex))
		s.metrics.RecordHubCompleted(a.Name)
		s.publish(ctx, domain.EventTypeHubCompleted, a.Name, map[string]interface{}{
			"hub":       hub,
			"hub_index": a.HubIndex,
		})

		if a.exhausted() {
			s.finish(ctx, a)
			return nil
		}
		a.Target = s.targets.Acquire(a.Name)
		return s.submitPickAndPlace(ctx, a)

	case status.OK():
		// The completed move was a retreat; resume the same hub.
		a.Interlocked = false
		s.logger.Info("agent back from staging, resuming",
			zap.String("agent", a.Name),
			zap.String("hub", a.CurrentHub()),
			zap.Int("hub_index", a.HubIndex))
		return s.submitPickAndPlace(ctx, a)

	case idx == s.retreatIdx:
		a.failures++
		s.logger.Warn("move failed, retreating to staging",
			zap.String("agent", a.Name),
			zap.String("hub", a.CurrentHub()),
			zap.Stringer("status", status))
		return s.submitRetreat(ctx, a)

	case s.opts.MaxRetries > 0 && a.Retries >= s.opts.MaxRetries:
		a.failures++
		s.logger.Warn("retry limit reached, retreating to staging",
			zap.String("agent", a.Name),
			zap.String("hub", a.CurrentHub()),
			zap.Int("retries", a.Retries),
			zap.Stringer("status", status))
		a.Retries = 0
		return s.submitRetreat(ctx, a)

	default:
		a.failures++
		a.Retries++
		a.totalRetries++
		a.Interlocked = false
		s.logger.Warn("move failed, retrying in place",
			zap.String("agent", a.Name),
			zap.String("hub", a.CurrentHub()),
			zap.Int("retries", a.Retries),
			zap.Stringer("status", status))
		s.metrics.RecordRetry(a.Name)
		s.publish(ctx, domain.EventTypeRetry, a.Name, map[string]interface{}{
			"hub":       a.CurrentHub(),
			"hub_index": a.HubIndex,
			"retries":   a.Retries,
			"status":    status.String(),
		})
		return s.submitPickAndPlace(ctx, a)
	}
}

// submitPickAndPlace queues the composite operation for the current hub
func (s *Scheduler) submitPickAndPlace(ctx context.Context, a *Agent) error {
	params := s.params(a, a.CurrentHub())
	params.pose = a.Target
	if err := s.submit(ctx, a, domain.KindPickAndPlace, pickAndPlace(s.gateway, s.logger, params)); err != nil {
		return err
	}
	a.State = domain.AgentStateInFlight
	s.save(ctx, a)
	s.publish(ctx, domain.EventTypeDispatched, a.Name, map[string]interface{}{
		"hub":       params.hub,
		"hub_index": a.HubIndex,
		"target":    params.pose,
	})
	return nil
}

// submitRetreat queues a move to staging and interlocks the agent
func (s *Scheduler) submitRetreat(ctx context.Context, a *Agent) error {
	s.logger.Info("retracting agent to staging", zap.String("agent", a.Name))
	params := s.params(a, s.opts.StagingHub)
	if err := s.submit(ctx, a, domain.KindMoveToHub, moveToHub(s.gateway, s.logger, params)); err != nil {
		return err
	}
	a.Interlocked = true
	a.State = domain.AgentStateRetreating
	a.retreats++
	s.metrics.RecordRetreat(a.Name)
	s.save(ctx, a)
	s.publish(ctx, domain.EventTypeRetreat, a.Name, map[string]interface{}{
		"hub":       a.CurrentHub(),
		"hub_index": a.HubIndex,
	})
	return nil
}

func (s *Scheduler) submit(ctx context.Context, a *Agent, kind domain.OperationKind, run func(context.Context) domain.Status) error {
	if a.op != nil {
		return fmt.Errorf("agent %s already has operation %s in flight", a.Name, a.op.ID)
	}
	h, err := s.pool.Submit(ctx, workers.Task{
		Agent:  a.Name,
		Kind:   kind,
		Run:    run,
		Notify: s.wake,
	})
	if err != nil {
		return fmt.Errorf("failed to submit %s for agent %s: %w", kind, a.Name, err)
	}
	a.op = h
	return nil
}

func (s *Scheduler) params(a *Agent, hub string) moveParams {
	return moveParams{
		agent:     a.Name,
		workstate: s.opts.Workstate,
		hub:       hub,
		tolerance: s.opts.Tolerance,
		mode:      s.opts.CompletionMode,
		kind:      s.opts.CompletionType,
		speed:     s.opts.Speed,
	}
}

// finish marks the agent done and records its cycle time
func (s *Scheduler) finish(ctx context.Context, a *Agent) {
	if !a.finish(time.Now()) {
		return
	}
	elapsed := a.EndedAt.Sub(s.startTime)
	s.logger.Info("agent has finished",
		zap.String("agent", a.Name),
		zap.Int("hubs_completed", a.hubsCompleted),
		zap.Duration("elapsed", elapsed))
	s.metrics.ObserveCycleDuration(a.Name, elapsed)
	s.metrics.SetActiveAgents(s.activeCount())
	s.save(ctx, a)
	s.publish(ctx, domain.EventTypeFinished, a.Name, map[string]interface{}{
		"hub_index": a.HubIndex,
		"elapsed":   elapsed.String(),
	})
}

// retreatAll sends every agent to staging and waits for all of them
func (s *Scheduler) retreatAll(ctx context.Context) ([]domain.Status, error) {
	handles := make([]*workers.Handle, len(s.agents))
	for i := len(s.agents) - 1; i >= 0; i-- {
		a := s.agents[i]
		s.logger.Info("retracting agent to staging", zap.String("agent", a.Name))
		params := s.params(a, s.opts.StagingHub)
		h, err := s.pool.Submit(ctx, workers.Task{
			Agent: a.Name,
			Kind:  domain.KindMoveToHub,
			Run:   moveToHub(s.gateway, s.logger, params),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to submit final retreat for agent %s: %w", a.Name, err)
		}
		handles[i] = h
	}

	statuses := make([]domain.Status, len(s.agents))
	for i, h := range handles {
		status, err := h.Wait(ctx)
		if err != nil {
			return nil, err
		}
		statuses[i] = status
		if !status.OK() {
			s.logger.Warn("final retreat failed",
				zap.String("agent", s.agents[i].Name),
				zap.Stringer("status", status))
		}
	}
	return statuses, nil
}

func (s *Scheduler) activeCount() int {
	n := 0
	for _, a := range s.agents {
		if a.Active {
			n++
		}
	}
	return n
}

// save stores the agent snapshot; failures are logged only
func (s *Scheduler) save(ctx context.Context, a *Agent) {
	if err := s.storage.SaveAgent(ctx, a.Snapshot(s.opts.RunID)); err != nil {
		s.logger.Warn("failed to save agent snapshot",
			zap.String("agent", a.Name),
			zap.Error(err))
	}
}

// publish emits a lifecycle event; failures are logged only
func (s *Scheduler) publish(ctx context.Context, eventType domain.EventType, agent string, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     s.opts.RunID,
		Agent:     agent,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := s.events.Publish(ctx, ports.EventsTopic, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
