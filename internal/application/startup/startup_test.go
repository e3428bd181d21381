package startup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubGateway logs every command and returns the configured status for it
type stubGateway struct {
	mu       sync.Mutex
	log      []string
	mode     domain.Mode
	statuses map[string]domain.Status
	errs     map[string]error
	seq      ports.Sequence
	hubs     map[ports.Sequence]string
}

func newStubGateway(mode domain.Mode) *stubGateway {
	return &stubGateway{
		mode:     mode,
		statuses: make(map[string]domain.Status),
		errs:     make(map[string]error),
		hubs:     make(map[ports.Sequence]string),
	}
}

func (g *stubGateway) result(entry string) (domain.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log = append(g.log, entry)
	return g.statuses[entry], g.errs[entry]
}

func (g *stubGateway) MoveToHub(_ context.Context, agent, _, hub string, _ float64) (ports.Sequence, error) {
	entry := fmt.Sprintf("MoveToHub %s %s", agent, hub)
	if _, err := g.result(entry); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.hubs[g.seq] = agent
	return g.seq, nil
}

func (g *stubGateway) MoveToPose(context.Context, string, string, domain.Pose, domain.Tolerance,
	domain.CompletionMode, domain.CompletionType, float64) (ports.Sequence, error) {
	return 0, errors.New("unexpected MoveToPose")
}

func (g *stubGateway) BlindMove(context.Context, string, string, domain.Pose, domain.BlindMode, float64) (ports.Sequence, error) {
	return 0, errors.New("unexpected BlindMove")
}

func (g *stubGateway) WaitForMove(_ context.Context, seq ports.Sequence) (domain.Status, error) {
	g.mu.Lock()
	agent := g.hubs[seq]
	g.mu.Unlock()
	return g.result("WaitForMove " + agent)
}

func (g *stubGateway) GetMode(context.Context) (domain.Status, domain.Mode, error) {
	status, err := g.result("GetMode")
	return status, g.mode, err
}

func (g *stubGateway) ClearFaults(context.Context) (domain.Status, error) {
	return g.result("ClearFaults")
}

func (g *stubGateway) InitGroup(_ context.Context, agent, workstate string) (domain.Status, error) {
	return g.result(fmt.Sprintf("InitGroup %s %s", agent, workstate))
}

func (g *stubGateway) BeginOperationMode(context.Context) (domain.Status, error) {
	return g.result("BeginOperationMode")
}

func (g *stubGateway) SetInterruptBehavior(_ context.Context, agent string, attempts int, timeout time.Duration) (domain.Status, error) {
	return g.result(fmt.Sprintf("SetInterruptBehavior %s %d %s", agent, attempts, timeout))
}

func testOptions() Options {
	return Options{
		Workstate:      "no_part",
		StagingHub:     "staging",
		Speed:          1.0,
		ReplanAttempts: 1,
		MoveTimeout:    500 * time.Millisecond,
	}
}

func TestPrepareOrder(t *testing.T) {
	gw := newStubGateway(domain.ModeConfig)

	err := Prepare(context.Background(), gw, []string{"left", "right"}, testOptions(), zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, []string{
		"GetMode",
		"InitGroup left no_part",
		"InitGroup right no_part",
		"BeginOperationMode",
		"MoveToHub left staging",
		"MoveToHub right staging",
		"WaitForMove left",
		"WaitForMove right",
		"SetInterruptBehavior left 1 500ms",
		"SetInterruptBehavior right 1 500ms",
	}, gw.log)
}

func TestPrepareClearsFaults(t *testing.T) {
	gw := newStubGateway(domain.ModeFault)

	require.NoError(t, Prepare(context.Background(), gw, []string{"left"}, testOptions(), zap.NewNop()))
	assert.Equal(t, []string{"GetMode", "ClearFaults"}, gw.log[:2])
}

func TestRecoverOnlyTouchesMode(t *testing.T) {
	gw := newStubGateway(domain.ModeOperation)

	require.NoError(t, Recover(context.Background(), gw, zap.NewNop()))
	assert.Equal(t, []string{"GetMode"}, gw.log)

	gw = newStubGateway(domain.ModeFault)
	require.NoError(t, Recover(context.Background(), gw, zap.NewNop()))
	assert.Equal(t, []string{"GetMode", "ClearFaults"}, gw.log)
}

func TestPrepareFaultNotCleared(t *testing.T) {
	gw := newStubGateway(domain.ModeFault)
	gw.statuses["ClearFaults"] = domain.StatusFailure

	err := Prepare(context.Background(), gw, []string{"left"}, testOptions(), zap.NewNop())

	assert.ErrorIs(t, err, ErrFaultNotCleared)
	assert.Equal(t, []string{"GetMode", "ClearFaults"}, gw.log)
}

func TestPrepareFailures(t *testing.T) {
	transport := errors.New("connection refused")

	tests := []struct {
		name    string
		setup   func(g *stubGateway)
		lastLog string
	}{
		{"init group status", func(g *stubGateway) { g.statuses["InitGroup right no_part"] = domain.StatusFailure }, "InitGroup right no_part"},
		{"begin operation error", func(g *stubGateway) { g.errs["BeginOperationMode"] = transport }, "BeginOperationMode"},
		{"roadmap move fails", func(g *stubGateway) { g.statuses["WaitForMove left"] = domain.StatusInvalidHub }, "WaitForMove left"},
		{"roadmap submit fails", func(g *stubGateway) { g.errs["MoveToHub right staging"] = transport }, "MoveToHub right staging"},
		{"interrupt behavior", func(g *stubGateway) { g.statuses["SetInterruptBehavior left 1 500ms"] = domain.StatusFailure }, "SetInterruptBehavior left 1 500ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newStubGateway(domain.ModeOperation)
			tt.setup(gw)

			err := Prepare(context.Background(), gw, []string{"left", "right"}, testOptions(), zap.NewNop())

			require.Error(t, err)
			assert.Equal(t, tt.lastLog, gw.log[len(gw.log)-1])
		})
	}
}

func TestPrepareWrapsTransportError(t *testing.T) {
	transport := errors.New("connection refused")
	gw := newStubGateway(domain.ModeOperation)
	gw.errs["GetMode"] = transport

	err := Prepare(context.Background(), gw, []string{"left"}, testOptions(), zap.NewNop())

	assert.ErrorIs(t, err, transport)
}
