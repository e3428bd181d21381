package domain

import "time"

// AgentState is the scheduler state of one agent.
type AgentState string

const (
	AgentStatePending    AgentState = "pending"
	AgentStateInFlight   AgentState = "in_flight"
	AgentStateRetreating AgentState = "retreating"
	AgentStateDone       AgentState = "done"
)

// AgentSnapshot is a read-only copy of an agent's cycle state.
type AgentSnapshot struct {
	RunID          string     `json:"run_id"`
	Name           string     `json:"name"`
	State          AgentState `json:"state"`
	HubSequence    []string   `json:"hub_sequence"`
	HubIndex       int        `json:"hub_index"`
	CurrentHub     string     `json:"current_hub,omitempty"`
	Active         bool       `json:"active"`
	Interlocked    bool       `json:"interlocked"`
	RetreatCapable bool       `json:"retreat_capable"`
	Target         Pose       `json:"target"`
	Retries        int        `json:"retries"`
	HubsCompleted  int        `json:"hubs_completed"`
	Retreats       int        `json:"retreats"`
	Failures       int        `json:"failures"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AgentReport is one line of the cycle report.
type AgentReport struct {
	Name          string        `json:"name"`
	Elapsed       time.Duration `json:"elapsed"`
	HubsCompleted int           `json:"hubs_completed"`
	Retreats      int           `json:"retreats"`
	Retries       int           `json:"retries"`
	Failures      int           `json:"failures"`
	FinalRetreat  Status        `json:"final_retreat"`
}

// CycleReport summarises a finished run.
type CycleReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Agents     []AgentReport `json:"agents"`
}
