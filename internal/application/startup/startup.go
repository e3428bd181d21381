package startup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"go.uber.org/zap"
)

// ErrFaultNotCleared is returned when the controller stays in FAULT mode.
var ErrFaultNotCleared = errors.New("failed to clear faults")

// Options are the controller settings applied before the cycle starts
type Options struct {
	Workstate      string
	StagingHub     string
	Speed          float64
	ReplanAttempts int
	MoveTimeout    time.Duration
}

// Prepare runs the startup sequence for the named agents
func Prepare(ctx context.Context, gw ports.MoveGateway, names []string, opts Options, logger *zap.Logger) error {
	logger.Info("interrupt behavior",
		zap.Int("replan_attempts", opts.ReplanAttempts),
		zap.Duration("move_timeout", opts.MoveTimeout))

	if err := Recover(ctx, gw, logger); err != nil {
		return err
	}

	logger.Info("startup sequence...")
	for _, name := range names {
		status, err := gw.InitGroup(ctx, name, opts.Workstate)
		if err := check("InitGroup", name, status, err); err != nil {
			return err
		}
	}
	status, err := gw.BeginOperationMode(ctx)
	if err := check("BeginOperationMode", "", status, err); err != nil {
		return err
	}

	logger.Info("putting agents on roadmap...", zap.String("hub", opts.StagingHub))
	if err := putOnRoadmap(ctx, gw, names, opts); err != nil {
		return err
	}

	for _, name := range names {
		status, err := gw.SetInterruptBehavior(ctx, name, opts.ReplanAttempts, opts.MoveTimeout)
		if err := check("SetInterruptBehavior", name, status, err); err != nil {
			return err
		}
	}

	logger.Info("controller ready", zap.Strings("agents", names))
	return nil
}

// Recover clears a FAULT mode so the controller can serve requests. Prepare
// calls it first; it is a no-op once the controller has left FAULT.
func Recover(ctx context.Context, gw ports.MoveGateway, logger *zap.Logger) error {
	status, mode, err := gw.GetMode(ctx)
	if err := check("GetMode", "", status, err); err != nil {
		return err
	}
	logger.Info("controller mode", zap.String("mode", string(mode)))
	if mode != domain.ModeFault {
		return nil
	}

	status, err = gw.ClearFaults(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFaultNotCleared, err)
	}
	if !status.OK() {
		logger.Error("failed to clear faults", zap.Stringer("status", status))
		return fmt.Errorf("%w: controller returned %s", ErrFaultNotCleared, status)
	}
	return nil
}

// putOnRoadmap moves every agent to the staging hub and waits for all of them
func putOnRoadmap(ctx context.Context, gw ports.MoveGateway, names []string, opts Options) error {
	seqs := make([]ports.Sequence, len(names))
	for i, name := range names {
		seq, err := gw.MoveToHub(ctx, name, opts.Workstate, opts.StagingHub, opts.Speed)
		if err != nil {
			return fmt.Errorf("failed to move %s to %s: %w", name, opts.StagingHub, err)
		}
		seqs[i] = seq
	}

	for i, seq := range seqs {
		status, err := gw.WaitForMove(ctx, seq)
		if err := check("MoveToHub", names[i], status, err); err != nil {
			return err
		}
	}
	return nil
}

func check(op, agent string, status domain.Status, err error) error {
	target := op
	if agent != "" {
		target = fmt.Sprintf("%s for %s", op, agent)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", target, err)
	}
	if !status.OK() {
		return fmt.Errorf("%s failed: controller returned %s", target, status)
	}
	return nil
}
