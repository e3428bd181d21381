package cycle

import (
	"context"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"go.uber.org/zap"
)

// report builds, logs and stores the cycle report
func (s *Scheduler) report(ctx context.Context, final []domain.Status) *domain.CycleReport {
	report := &domain.CycleReport{
		RunID:      s.opts.RunID,
		StartedAt:  s.startTime,
		FinishedAt: time.Now(),
		Agents:     make([]domain.AgentReport, len(s.agents)),
	}

	for i, a := range s.agents {
		elapsed := a.EndedAt.Sub(s.startTime)
		report.Agents[i] = domain.AgentReport{
			Name:          a.Name,
			Elapsed:       elapsed,
			HubsCompleted: a.hubsCompleted,
			Retreats:      a.retreats,
			Retries:       a.totalRetries,
			Failures:      a.failures,
			FinalRetreat:  final[i],
		}
		s.logger.Info("hub cycle took",
			zap.String("agent", a.Name),
			zap.Duration("elapsed", elapsed),
			zap.Int("hubs_completed", a.hubsCompleted),
			zap.Int("retreats", a.retreats),
			zap.Int("retries", a.totalRetries))
	}

	if err := s.storage.SaveReport(ctx, report); err != nil {
		s.logger.Warn("failed to save cycle report", zap.Error(err))
	}
	s.publish(ctx, domain.EventTypeCycleCompleted, "", map[string]interface{}{
		"duration": report.FinishedAt.Sub(report.StartedAt).String(),
	})

	return report
}
