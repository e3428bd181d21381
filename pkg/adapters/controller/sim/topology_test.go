package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultTopology(t *testing.T) {
	topology := DefaultTopology([][]string{{"a1", "a2"}, {"b1"}}, "staging", "no_part")

	require.Len(t, topology.Agents, 2)
	assert.Equal(t, []string{"sim_robot_1", "sim_robot_2"}, topology.Names())
	assert.Equal(t, []string{"staging", "b1"}, topology.Agents[1].Hubs)

	loaded, err := New(Options{Topology: topology}, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, topology, loaded)

	_, err = New(Options{}, zap.NewNop()).Load(context.Background())
	assert.Error(t, err)
}
