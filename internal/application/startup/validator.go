package startup

import (
	"fmt"

	"github.com/aescanero/hubcycle/pkg/domain"
)

// Validator checks a loaded topology before any command is sent
type Validator struct {
	workstate  string
	stagingHub string
}

// NewValidator creates a topology validator
func NewValidator(workstate, stagingHub string) *Validator {
	return &Validator{
		workstate:  workstate,
		stagingHub: stagingHub,
	}
}

// Validate validates a topology
func (v *Validator) Validate(t *domain.Topology) error {
	if t == nil {
		return fmt.Errorf("topology is nil")
	}

	if len(t.Agents) == 0 {
		return fmt.Errorf("topology must have at least one agent")
	}

	names := make(map[string]bool)
	for i, agent := range t.Agents {
		if err := v.validateAgent(agent); err != nil {
			return fmt.Errorf("invalid agent %d (%s): %w", i, agent.Name, err)
		}

		// Check for duplicate agent names
		if names[agent.Name] {
			return fmt.Errorf("duplicate agent name: %s", agent.Name)
		}
		names[agent.Name] = true
	}

	return nil
}

// validateAgent validates a single agent
func (v *Validator) validateAgent(agent domain.AgentInfo) error {
	if agent.Name == "" {
		return fmt.Errorf("agent name is required")
	}

	if !agent.HasHub(v.stagingHub) {
		return fmt.Errorf("staging hub %s not found", v.stagingHub)
	}

	// Sources that do not list workstates are trusted.
	if v.workstate != "" && len(agent.Workstates) > 0 && !agent.HasWorkstate(v.workstate) {
		return fmt.Errorf("workstate %s not found", v.workstate)
	}

	return nil
}
