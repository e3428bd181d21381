package cycle

import (
	"testing"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func agentWith(name string, hubs ...string) domain.AgentInfo {
	return domain.AgentInfo{Name: name, Workstates: []string{"no_part"}, Hubs: hubs}
}

func TestResolveTwoTemplates(t *testing.T) {
	a, b := templateOf("a", 3), templateOf("b", 3)
	r := NewResolver([][]string{a, b}, zap.NewNop())

	assign, err := r.Resolve([]domain.AgentInfo{
		agentWith("left", append(a, "staging")...),
		agentWith("right", append(b, "staging")...),
	})

	require.NoError(t, err)
	assert.Equal(t, [][]string{a, b}, assign.Sequences)
	assert.Equal(t, []int{0, 1}, assign.Templates)
	assert.Equal(t, 1, assign.RetreatIdx)
}

func TestResolveSwapsWhenFirstAgentOnlyFitsSecondTemplate(t *testing.T) {
	a, b := templateOf("a", 2), templateOf("b", 2)
	r := NewResolver([][]string{a, b}, zap.NewNop())

	assign, err := r.Resolve([]domain.AgentInfo{
		agentWith("left", b...),
		agentWith("right", a...),
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, assign.Templates)
	assert.Equal(t, b, assign.Sequences[0])
}

func TestResolveBacktracksOverSharedHubs(t *testing.T) {
	a, b := templateOf("a", 2), templateOf("b", 2)
	r := NewResolver([][]string{a, b}, zap.NewNop())

	// left reaches both templates, right only the first.
	assign, err := r.Resolve([]domain.AgentInfo{
		agentWith("left", append(a, b...)...),
		agentWith("right", a...),
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, assign.Templates)
}

func TestResolveFails(t *testing.T) {
	a, b := templateOf("a", 2), templateOf("b", 2)

	tests := []struct {
		name   string
		agents []domain.AgentInfo
	}{
		{"missing hub", []domain.AgentInfo{agentWith("left", a...), agentWith("right", "b1")}},
		{"both fit the same template only", []domain.AgentInfo{agentWith("left", a...), agentWith("right", a...)}},
		{"too few agents", []domain.AgentInfo{agentWith("left", append(a, b...)...)}},
		{"too many agents", []domain.AgentInfo{agentWith("l", a...), agentWith("c", b...), agentWith("r", a...)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver([][]string{a, b}, zap.NewNop())
			_, err := r.Resolve(tt.agents)
			assert.ErrorIs(t, err, ErrNoAssignment)
		})
	}
}

func TestResolvedSequencesAreCopies(t *testing.T) {
	a, b := templateOf("a", 2), templateOf("b", 2)
	r := NewResolver([][]string{a, b}, zap.NewNop())

	assign, err := r.Resolve([]domain.AgentInfo{agentWith("left", a...), agentWith("right", b...)})
	require.NoError(t, err)

	assign.Sequences[0][0] = "changed"
	assert.Equal(t, "a1", a[0])
}

func TestDesignate(t *testing.T) {
	assign := &Assignment{RetreatIdx: 1}
	names := []string{"left", "right"}

	require.NoError(t, assign.Designate(names, "left"))
	assert.Equal(t, 0, assign.RetreatIdx)

	assert.Error(t, assign.Designate(names, "center"))
	assert.Equal(t, 0, assign.RetreatIdx)
}
