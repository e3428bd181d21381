package cycle

import (
	"testing"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestTrackerPhases(t *testing.T) {
	tr := NewTracker("run-1")
	var seen []domain.RunPhase
	tr.OnChange(func(p domain.RunPhase) { seen = append(seen, p) })

	tr.Set(domain.RunPhaseRunning)
	tr.Set(domain.RunPhaseRunning)
	tr.Set(domain.RunPhaseCompleted)
	tr.Set(domain.RunPhaseFailed)

	phase, since := tr.Phase()
	assert.Equal(t, domain.RunPhaseCompleted, phase)
	assert.False(t, since.IsZero())
	assert.Equal(t, "run-1", tr.RunID())
	assert.Equal(t, []domain.RunPhase{
		domain.RunPhaseStarting,
		domain.RunPhaseRunning,
		domain.RunPhaseCompleted,
	}, seen)
}
