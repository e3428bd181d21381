package domain

import "time"

// EventType names a cycle lifecycle event.
type EventType string

const (
	EventTypeCycleStarted   EventType = "cycle.started"
	EventTypeCycleCompleted EventType = "cycle.completed"
	EventTypeDispatched     EventType = "agent.dispatched"
	EventTypeHubCompleted   EventType = "agent.hub_completed"
	EventTypeRetreat        EventType = "agent.retreat"
	EventTypeRetry          EventType = "agent.retry"
	EventTypeFinished       EventType = "agent.finished"
)

// Event is published on the cycle event bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Agent     string                 `json:"agent,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
