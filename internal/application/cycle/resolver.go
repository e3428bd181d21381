package cycle

import (
	"errors"
	"fmt"

	"github.com/aescanero/hubcycle/pkg/domain"
	"go.uber.org/zap"
)

// ErrNoAssignment is returned when the templates cannot be matched to agents.
var ErrNoAssignment = errors.New("failed to assign the hub lists to the loaded agents")

// Assignment is the resolved hub sequence of every agent.
type Assignment struct {
	// Sequences[i] is the hub sequence of agent i.
	Sequences [][]string
	// Templates[i] is the template index used by agent i.
	Templates []int
	// RetreatIdx is the agent that retreats to staging on a failed move.
	RetreatIdx int
}

// Designate replaces the retreat-capable agent with the named one.
func (a *Assignment) Designate(names []string, name string) error {
	for i, n := range names {
		if n == name {
			a.RetreatIdx = i
			return nil
		}
	}
	return fmt.Errorf("retreat agent %q is not in the topology", name)
}

// Resolver matches hub-sequence templates to agents.
type Resolver struct {
	templates [][]string
	logger    *zap.Logger
}

// NewResolver creates a resolver over the given templates.
func NewResolver(templates [][]string, logger *zap.Logger) *Resolver {
	return &Resolver{
		templates: templates,
		logger:    logger,
	}
}

// Resolve gives every agent exactly one template whose hubs it can all
// reach, using each template once. Agents are matched in topology order and
// prefer the lowest-numbered template. The last agent assigned becomes the
// retreat-capable agent.
func (r *Resolver) Resolve(agents []domain.AgentInfo) (*Assignment, error) {
	if len(agents) != len(r.templates) {
		return nil, fmt.Errorf("%w: %d agents for %d templates",
			ErrNoAssignment, len(agents), len(r.templates))
	}

	fits := make([][]bool, len(agents))
	for i, agent := range agents {
		fits[i] = make([]bool, len(r.templates))
		for t, template := range r.templates {
			fits[i][t] = r.fits(agent, t, template)
		}
	}

	chosen := make([]int, len(agents))
	used := make([]bool, len(r.templates))
	if !match(fits, 0, used, chosen) {
		return nil, ErrNoAssignment
	}

	assign := &Assignment{
		Sequences: make([][]string, len(agents)),
		Templates: chosen,
	}
	for i, t := range chosen {
		assign.Sequences[i] = append([]string(nil), r.templates[t]...)
		assign.RetreatIdx = i
		r.logger.Info("hub sequence assigned",
			zap.String("agent", agents[i].Name),
			zap.Int("template", t),
			zap.Int("hubs", len(r.templates[t])))
	}

	return assign, nil
}

// fits reports whether agent can reach every hub of the template
func (r *Resolver) fits(agent domain.AgentInfo, t int, template []string) bool {
	for _, hub := range template {
		if !agent.HasHub(hub) {
			r.logger.Warn("hub doesn't exist in agent",
				zap.String("hub", hub),
				zap.String("agent", agent.Name),
				zap.Int("template", t))
			return false
		}
	}
	return true
}

// match assigns templates to agents i.. by backtracking
func match(fits [][]bool, i int, used []bool, chosen []int) bool {
	if i == len(fits) {
		return true
	}
	for t := range fits[i] {
		if !fits[i][t] || used[t] {
			continue
		}
		used[t] = true
		chosen[i] = t
		if match(fits, i+1, used, chosen) {
			return true
		}
		used[t] = false
	}
	return false
}
