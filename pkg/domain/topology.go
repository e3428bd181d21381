package domain

// AgentInfo describes one agent (controller project) and what it can reach.
type AgentInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Workstates []string `json:"workstates" yaml:"workstates"`
	Hubs       []string `json:"hubs" yaml:"hubs"`
}

// HasHub reports whether hub is reachable by the agent.
func (a AgentInfo) HasHub(hub string) bool {
	for _, h := range a.Hubs {
		if h == hub {
			return true
		}
	}
	return false
}

// HasWorkstate reports whether the agent defines workstate.
func (a AgentInfo) HasWorkstate(workstate string) bool {
	for _, w := range a.Workstates {
		if w == workstate {
			return true
		}
	}
	return false
}

// Topology is the ordered set of agents in one controller group.
type Topology struct {
	Group  string      `json:"group" yaml:"group"`
	Agents []AgentInfo `json:"agents" yaml:"agents"`
}

// Names returns the agent names in topology order.
func (t *Topology) Names() []string {
	names := make([]string, len(t.Agents))
	for i, a := range t.Agents {
		names[i] = a.Name
	}
	return names
}
