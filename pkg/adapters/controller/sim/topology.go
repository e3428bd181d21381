package sim

import (
	"context"
	"fmt"

	"github.com/aescanero/hubcycle/pkg/domain"
)

// DefaultTopology builds a cell with one simulated agent per template. Each
// agent reaches the staging hub and the hubs of its own template.
func DefaultTopology(templates [][]string, stagingHub, workstate string) *domain.Topology {
	topology := &domain.Topology{Group: "simulated"}
	for i, template := range templates {
		hubs := append([]string{stagingHub}, template...)
		topology.Agents = append(topology.Agents, domain.AgentInfo{
			Name:       fmt.Sprintf("sim_robot_%d", i+1),
			Workstates: []string{workstate},
			Hubs:       hubs,
		})
	}
	return topology
}

// Load returns the simulated cell's topology
func (c *Controller) Load(context.Context) (*domain.Topology, error) {
	if c.opts.Topology == nil {
		return nil, fmt.Errorf("simulated controller has no topology")
	}
	return c.opts.Topology, nil
}
