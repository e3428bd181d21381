package cycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/hubcycle/internal/application/workers"
	"github.com/aescanero/hubcycle/pkg/adapters/metrics/noop"
	storagememory "github.com/aescanero/hubcycle/pkg/adapters/storage/memory"
	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// call is one move request seen by the fake gateway. N counts requests of
// the same kind for the same agent, starting at 1.
type call struct {
	agent string
	kind  domain.OperationKind
	hub   string
	n     int
}

// fakeGateway records every move and reports success unless fail says otherwise.
type fakeGateway struct {
	mu          sync.Mutex
	seq         ports.Sequence
	pending     map[ports.Sequence]call
	calls       []call
	counts      map[string]int
	inflight    map[string]int
	maxInflight map[string]int

	fail      func(c call) bool
	submitErr func(c call) error
	latency   func() time.Duration
	block     chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pending:     make(map[ports.Sequence]call),
		counts:      make(map[string]int),
		inflight:    make(map[string]int),
		maxInflight: make(map[string]int),
	}
}

func (g *fakeGateway) record(agent string, kind domain.OperationKind, hub string) (ports.Sequence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := agent + "|" + string(kind)
	g.counts[key]++
	c := call{agent: agent, kind: kind, hub: hub, n: g.counts[key]}
	g.calls = append(g.calls, c)

	if g.submitErr != nil {
		if err := g.submitErr(c); err != nil {
			return 0, err
		}
	}

	g.seq++
	g.pending[g.seq] = c
	g.inflight[agent]++
	if g.inflight[agent] > g.maxInflight[agent] {
		g.maxInflight[agent] = g.inflight[agent]
	}
	return g.seq, nil
}

func (g *fakeGateway) MoveToHub(_ context.Context, agent, _, hub string, _ float64) (ports.Sequence, error) {
	return g.record(agent, domain.KindMoveToHub, hub)
}

func (g *fakeGateway) MoveToPose(_ context.Context, agent, _ string, _ domain.Pose, _ domain.Tolerance,
	_ domain.CompletionMode, _ domain.CompletionType, _ float64) (ports.Sequence, error) {
	return g.record(agent, domain.KindMoveToPose, "")
}

func (g *fakeGateway) BlindMove(_ context.Context, agent, _ string, _ domain.Pose, _ domain.BlindMode, _ float64) (ports.Sequence, error) {
	return g.record(agent, domain.KindBlindMove, "")
}

func (g *fakeGateway) WaitForMove(ctx context.Context, seq ports.Sequence) (domain.Status, error) {
	g.mu.Lock()
	c, ok := g.pending[seq]
	delete(g.pending, seq)
	latency, block, fail := g.latency, g.block, g.fail
	g.mu.Unlock()
	if !ok {
		return domain.StatusFailure, fmt.Errorf("unknown sequence %d", seq)
	}

	defer func() {
		g.mu.Lock()
		g.inflight[c.agent]--
		g.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.StatusCanceled, ctx.Err()
		}
	}
	if latency != nil {
		select {
		case <-time.After(latency()):
		case <-ctx.Done():
			return domain.StatusCanceled, ctx.Err()
		}
	}

	if fail != nil && fail(c) {
		return domain.StatusFailure, nil
	}
	return domain.StatusSuccess, nil
}

func (g *fakeGateway) GetMode(context.Context) (domain.Status, domain.Mode, error) {
	return domain.StatusSuccess, domain.ModeOperation, nil
}

func (g *fakeGateway) ClearFaults(context.Context) (domain.Status, error) {
	return domain.StatusSuccess, nil
}

func (g *fakeGateway) InitGroup(context.Context, string, string) (domain.Status, error) {
	return domain.StatusSuccess, nil
}

func (g *fakeGateway) BeginOperationMode(context.Context) (domain.Status, error) {
	return domain.StatusSuccess, nil
}

func (g *fakeGateway) SetInterruptBehavior(context.Context, string, int, time.Duration) (domain.Status, error) {
	return domain.StatusSuccess, nil
}

// callsFor returns the agent's requests of one kind, in order
func (g *fakeGateway) callsFor(agent string, kind domain.OperationKind) []call {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []call
	for _, c := range g.calls {
		if c.agent == agent && c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// hubsFor returns the hubs the agent was sent to, in order
func (g *fakeGateway) hubsFor(agent string) []string {
	var hubs []string
	for _, c := range g.callsFor(agent, domain.KindMoveToHub) {
		hubs = append(hubs, c.hub)
	}
	return hubs
}

func (g *fakeGateway) peakInflight(agent string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxInflight[agent]
}

// recordingBus keeps every published event in order
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, _ string, event domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string, ports.EventHandler) error {
	return errors.New("not supported")
}

func (b *recordingBus) Unsubscribe(context.Context, string) error { return nil }
func (b *recordingBus) Close() error                              { return nil }

func (b *recordingBus) ofType(agent string, t domain.EventType) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.Event
	for _, e := range b.events {
		if e.Agent == agent && e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testRun struct {
	gateway   *fakeGateway
	bus       *recordingBus
	storage   *storagememory.InMemoryStateStorage
	scheduler *Scheduler
}

func newTestRun(t *testing.T, gw *fakeGateway, opts Options) *testRun {
	t.Helper()

	pool := workers.NewPool(4, 16, noop.Collector{}, zap.NewNop(), 0)
	require.NoError(t, pool.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	if opts.StagingHub == "" {
		opts.StagingHub = "staging"
	}
	if opts.Workstate == "" {
		opts.Workstate = "no_part"
	}
	if opts.Speed == 0 {
		opts.Speed = 1.0
	}

	bus := &recordingBus{}
	storage := storagememory.NewInMemoryStateStorage()
	s := NewScheduler(&Config{
		Gateway: gw,
		Pool:    pool,
		Targets: NewTargetGenerator(DefaultBounds(), rand.New(rand.NewSource(1))),
		Events:  bus,
		Storage: storage,
		Metrics: noop.Collector{},
		Logger:  zap.NewNop(),
		Options: opts,
	})

	return &testRun{gateway: gw, bus: bus, storage: storage, scheduler: s}
}

func (r *testRun) run(t *testing.T, names []string, assign *Assignment) *domain.CycleReport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	report, err := r.scheduler.Run(ctx, names, assign)
	require.NoError(t, err)
	return report
}

// hubIndexes returns the hub_index carried by each event, in order
func hubIndexes(events []domain.Event) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Data["hub_index"].(int)
	}
	return out
}

func templateOf(prefix string, n int) []string {
	hubs := make([]string, n)
	for i := range hubs {
		hubs[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return hubs
}
