package domain

// RunPhase is the coarse lifecycle of one hub cycle run.
type RunPhase string

const (
	RunPhaseStarting  RunPhase = "starting"
	RunPhaseRunning   RunPhase = "running"
	RunPhaseCompleted RunPhase = "completed"
	RunPhaseFailed    RunPhase = "failed"
)

// Terminal reports whether the run is over.
func (p RunPhase) Terminal() bool {
	return p == RunPhaseCompleted || p == RunPhaseFailed
}
