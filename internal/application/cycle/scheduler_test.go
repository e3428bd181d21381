package cycle

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hubsPerAgent = 4

func twoAgentAssignment() ([]string, *Assignment) {
	return []string{"left", "right"}, &Assignment{
		Sequences:  [][]string{templateOf("a", hubsPerAgent), templateOf("b", hubsPerAgent)},
		Templates:  []int{0, 1},
		RetreatIdx: 1,
	}
}

func TestRunAllSuccess(t *testing.T) {
	r := newTestRun(t, newFakeGateway(), Options{})
	names, assign := twoAgentAssignment()

	report := r.run(t, names, assign)

	for i, name := range names {
		assert.Len(t, r.gateway.callsFor(name, domain.KindMoveToPose), hubsPerAgent)
		assert.Len(t, r.gateway.callsFor(name, domain.KindBlindMove), hubsPerAgent)

		want := append(append([]string(nil), assign.Sequences[i]...), "staging")
		assert.Equal(t, want, r.gateway.hubsFor(name), "agent %s", name)

		assert.Equal(t, []int{1, 2, 3, 4}, hubIndexes(r.bus.ofType(name, domain.EventTypeHubCompleted)))
		assert.Len(t, r.bus.ofType(name, domain.EventTypeFinished), 1)
	}

	require.Len(t, report.Agents, 2)
	for _, a := range report.Agents {
		assert.Equal(t, hubsPerAgent, a.HubsCompleted)
		assert.Zero(t, a.Retreats)
		assert.Zero(t, a.Retries)
		assert.Equal(t, domain.StatusSuccess, a.FinalRetreat)
		assert.Greater(t, a.Elapsed, time.Duration(0))
	}

	for _, snap := range r.scheduler.Agents() {
		assert.False(t, snap.Active)
		assert.Equal(t, domain.AgentStateDone, snap.State)
		assert.Equal(t, hubsPerAgent, snap.HubIndex)
		require.NotNil(t, snap.EndedAt)
	}

	stored, err := r.storage.GetReport(context.Background(), r.scheduler.RunID())
	require.NoError(t, err)
	assert.Len(t, stored.Agents, 2)
}

func TestRetreatAgentResumesSameHub(t *testing.T) {
	gw := newFakeGateway()
	gw.fail = func(c call) bool {
		return c.agent == "right" && c.kind == domain.KindMoveToPose && c.n == 3
	}
	r := newTestRun(t, gw, Options{})
	names, assign := twoAgentAssignment()

	report := r.run(t, names, assign)

	// The third pick failed at b3: retreat, then b3 again, never skipping it.
	assert.Equal(t, []string{"b1", "b2", "staging", "b3", "b4", "staging"}, gw.hubsFor("right"))
	assert.Equal(t, []int{1, 2, 3, 4}, hubIndexes(r.bus.ofType("right", domain.EventTypeHubCompleted)))

	retreats := r.bus.ofType("right", domain.EventTypeRetreat)
	require.Len(t, retreats, 1)
	assert.Equal(t, 2, retreats[0].Data["hub_index"])

	// The other agent is never interlocked.
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "staging"}, gw.hubsFor("left"))

	assert.Equal(t, 1, report.Agents[1].Retreats)
	assert.Equal(t, 1, report.Agents[1].Failures)
	assert.Equal(t, hubsPerAgent, report.Agents[1].HubsCompleted)
	assert.Zero(t, report.Agents[0].Retreats)
}

func TestNonRetreatAgentRetriesInPlace(t *testing.T) {
	gw := newFakeGateway()
	gw.fail = func(c call) bool {
		return c.agent == "left" && c.kind == domain.KindMoveToPose && c.n >= 2 && c.n <= 4
	}
	r := newTestRun(t, gw, Options{})
	names, assign := twoAgentAssignment()

	report := r.run(t, names, assign)

	assert.Len(t, gw.callsFor("left", domain.KindMoveToPose), hubsPerAgent+3)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "staging"}, gw.hubsFor("left"))

	retries := r.bus.ofType("left", domain.EventTypeRetry)
	require.Len(t, retries, 3)
	assert.Equal(t, []int{1, 1, 1}, hubIndexes(retries))
	assert.Empty(t, r.bus.ofType("left", domain.EventTypeRetreat))

	assert.Equal(t, 3, report.Agents[0].Retries)
	assert.Zero(t, report.Agents[0].Retreats)
	assert.Equal(t, hubsPerAgent, report.Agents[0].HubsCompleted)
}

func TestRetryCapEscalatesToRetreat(t *testing.T) {
	gw := newFakeGateway()
	gw.fail = func(c call) bool {
		return c.agent == "left" && c.kind == domain.KindMoveToPose && c.n >= 2 && c.n <= 4
	}
	r := newTestRun(t, gw, Options{MaxRetries: 2})
	names, assign := twoAgentAssignment()

	report := r.run(t, names, assign)

	assert.Equal(t, []string{"a1", "staging", "a2", "a3", "a4", "staging"}, gw.hubsFor("left"))
	assert.Equal(t, 2, report.Agents[0].Retries)
	assert.Equal(t, 1, report.Agents[0].Retreats)
	assert.Equal(t, []int{1, 2, 3, 4}, hubIndexes(r.bus.ofType("left", domain.EventTypeHubCompleted)))
}

func TestFailedRetreatIsRetried(t *testing.T) {
	gw := newFakeGateway()
	gw.fail = func(c call) bool {
		if c.agent != "right" {
			return false
		}
		// First pick fails, then the first retreat fails too.
		return (c.kind == domain.KindMoveToPose && c.n == 1) ||
			(c.kind == domain.KindMoveToHub && c.hub == "staging" && c.n == 1)
	}
	r := newTestRun(t, gw, Options{})
	names, assign := twoAgentAssignment()

	report := r.run(t, names, assign)

	assert.Equal(t, []string{"staging", "staging", "b1", "b2", "b3", "b4", "staging"}, gw.hubsFor("right"))
	assert.Equal(t, 2, report.Agents[1].Retreats)
	assert.Equal(t, hubsPerAgent, report.Agents[1].HubsCompleted)
}

func TestEmptyHubSequenceFinishesImmediately(t *testing.T) {
	r := newTestRun(t, newFakeGateway(), Options{})
	names := []string{"left", "right"}
	assign := &Assignment{
		Sequences:  [][]string{{}, templateOf("b", 2)},
		Templates:  []int{0, 1},
		RetreatIdx: 1,
	}

	report := r.run(t, names, assign)

	assert.Empty(t, r.gateway.callsFor("left", domain.KindMoveToPose))
	assert.Equal(t, []string{"staging"}, r.gateway.hubsFor("left"))
	assert.Zero(t, report.Agents[0].HubsCompleted)
	assert.Equal(t, 2, report.Agents[1].HubsCompleted)
}

func TestAllSequencesEmpty(t *testing.T) {
	r := newTestRun(t, newFakeGateway(), Options{})

	report := r.run(t, []string{"left", "right"}, &Assignment{
		Sequences:  [][]string{{}, {}},
		RetreatIdx: 0,
	})

	assert.Len(t, report.Agents, 2)
	assert.Equal(t, []string{"staging"}, r.gateway.hubsFor("right"))
}

func TestTransportErrorIsRetried(t *testing.T) {
	gw := newFakeGateway()
	var once sync.Once
	gw.submitErr = func(c call) error {
		var err error
		if c.agent == "left" && c.kind == domain.KindBlindMove {
			once.Do(func() { err = assert.AnError })
		}
		return err
	}
	r := newTestRun(t, gw, Options{})
	names, assign := twoAgentAssignment()

	report := r.run(t, names, assign)

	assert.Equal(t, 1, report.Agents[0].Retries)
	assert.Equal(t, hubsPerAgent, report.Agents[0].HubsCompleted)
	assert.Equal(t, domain.StatusTransport.String(), r.bus.ofType("left", domain.EventTypeRetry)[0].Data["status"])
}

func TestRandomLatencyKeepsOneOperationPerAgent(t *testing.T) {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(42))

	gw := newFakeGateway()
	gw.latency = func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return time.Duration(rng.Intn(2000)) * time.Microsecond
	}
	gw.fail = func(call) bool {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64() < 0.25
	}

	r := newTestRun(t, gw, Options{})
	names := []string{"left", "center", "right"}
	assign := &Assignment{
		Sequences:  [][]string{templateOf("a", 6), templateOf("b", 6), templateOf("c", 6)},
		Templates:  []int{0, 1, 2},
		RetreatIdx: 2,
	}

	report := r.run(t, names, assign)

	for i, name := range names {
		assert.Equal(t, 1, gw.peakInflight(name), "agent %s", name)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, hubIndexes(r.bus.ofType(name, domain.EventTypeHubCompleted)))
		assert.Equal(t, 6, report.Agents[i].HubsCompleted)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	r := newTestRun(t, gw, Options{})
	names, assign := twoAgentAssignment()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.scheduler.Run(ctx, names, assign)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsMismatchedAssignment(t *testing.T) {
	r := newTestRun(t, newFakeGateway(), Options{})

	_, err := r.scheduler.Run(context.Background(), []string{"left"}, &Assignment{
		Sequences: [][]string{{"a"}, {"b"}},
	})
	assert.Error(t, err)
}

func TestSnapshotsStoredDuringRun(t *testing.T) {
	r := newTestRun(t, newFakeGateway(), Options{RunID: "run-7"})
	names, assign := twoAgentAssignment()

	r.run(t, names, assign)

	snaps, err := r.storage.ListAgents(context.Background(), "run-7")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "left", snaps[0].Name)
	assert.Equal(t, domain.AgentStateDone, snaps[0].State)
	assert.True(t, snaps[1].RetreatCapable)
}
