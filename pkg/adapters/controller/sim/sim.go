// Package sim is an in-process MoveGateway that completes moves after a
// random delay and, once armed, fails a configurable share of them.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"go.uber.org/zap"
)

// Options configure the simulated controller
type Options struct {
	MinLatency time.Duration
	MaxLatency time.Duration

	// FailureRate is the share of moves that fail after Arm. Moves made
	// during startup always succeed.
	FailureRate float64
	Seed        int64

	// Topology, when set, makes moves to hubs an agent lacks fail with
	// StatusInvalidHub and InitGroup fail for unknown agents.
	Topology *domain.Topology

	InitialMode domain.Mode
}

// Controller simulates the realtime controller
type Controller struct {
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	seq   ports.Sequence
	moves map[ports.Sequence]chan domain.Status
	mode  domain.Mode
	hubs  map[string]map[string]bool
	armed bool
}

// New creates a simulated controller
func New(opts Options, logger *zap.Logger) *Controller {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mode := opts.InitialMode
	if mode == "" {
		mode = domain.ModeConfig
	}

	c := &Controller{
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		moves:  make(map[ports.Sequence]chan domain.Status),
		mode:   mode,
	}
	if opts.Topology != nil {
		c.hubs = make(map[string]map[string]bool)
		for _, a := range opts.Topology.Agents {
			c.hubs[a.Name] = make(map[string]bool)
			for _, h := range a.Hubs {
				c.hubs[a.Name][h] = true
			}
		}
	}
	return c
}

// start schedules a move's result; code overrides the random outcome when
// the move is invalid
func (c *Controller) start(agent string, code domain.Status) ports.Sequence {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	seq := c.seq
	ch := make(chan domain.Status, 1)
	c.moves[seq] = ch

	delay := c.opts.MinLatency
	if span := c.opts.MaxLatency - c.opts.MinLatency; span > 0 {
		delay += time.Duration(c.rng.Int63n(int64(span)))
	}
	if c.armed && code.OK() && c.rng.Float64() < c.opts.FailureRate {
		code = domain.StatusFailure
	}

	c.logger.Debug("simulated move",
		zap.String("agent", agent),
		zap.Int64("sequence", int64(seq)),
		zap.Duration("delay", delay),
		zap.Stringer("result", code))

	time.AfterFunc(delay, func() { ch <- code })
	return seq
}

// Arm starts injecting random failures into later moves
func (c *Controller) Arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = true
}

func (c *Controller) hubCode(agent, hub string) domain.Status {
	if c.hubs == nil || c.hubs[agent][hub] {
		return domain.StatusSuccess
	}
	return domain.StatusInvalidHub
}

// MoveToHub simulates a move to a named hub
func (c *Controller) MoveToHub(_ context.Context, agent, _, hub string, _ float64) (ports.Sequence, error) {
	return c.start(agent, c.hubCode(agent, hub)), nil
}

// MoveToPose simulates an approach move
func (c *Controller) MoveToPose(_ context.Context, agent, _ string, _ domain.Pose, _ domain.Tolerance,
	_ domain.CompletionMode, _ domain.CompletionType, _ float64) (ports.Sequence, error) {
	return c.start(agent, domain.StatusSuccess), nil
}

// BlindMove simulates an unplanned move
func (c *Controller) BlindMove(_ context.Context, agent, _ string, _ domain.Pose, _ domain.BlindMode, _ float64) (ports.Sequence, error) {
	return c.start(agent, domain.StatusSuccess), nil
}

// WaitForMove blocks until the simulated move completes
func (c *Controller) WaitForMove(ctx context.Context, seq ports.Sequence) (domain.Status, error) {
	c.mu.Lock()
	ch, ok := c.moves[seq]
	delete(c.moves, seq)
	c.mu.Unlock()
	if !ok {
		return domain.StatusFailure, fmt.Errorf("unknown move sequence %d", seq)
	}

	select {
	case status := <-ch:
		return status, nil
	case <-ctx.Done():
		return domain.StatusCanceled, ctx.Err()
	}
}

// GetMode returns the simulated mode
func (c *Controller) GetMode(context.Context) (domain.Status, domain.Mode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.StatusSuccess, c.mode, nil
}

// ClearFaults leaves FAULT mode
func (c *Controller) ClearFaults(context.Context) (domain.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == domain.ModeFault {
		c.mode = domain.ModeConfig
	}
	return domain.StatusSuccess, nil
}

// InitGroup accepts any agent known to the topology
func (c *Controller) InitGroup(_ context.Context, agent, _ string) (domain.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hubs != nil {
		if _, ok := c.hubs[agent]; !ok {
			return domain.StatusFailure, nil
		}
	}
	return domain.StatusSuccess, nil
}

// BeginOperationMode enters OPERATION unless faulted
func (c *Controller) BeginOperationMode(context.Context) (domain.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == domain.ModeFault {
		return domain.StatusFailure, nil
	}
	c.mode = domain.ModeOperation
	return domain.StatusSuccess, nil
}

// SetInterruptBehavior is accepted and ignored
func (c *Controller) SetInterruptBehavior(context.Context, string, int, time.Duration) (domain.Status, error) {
	return domain.StatusSuccess, nil
}
