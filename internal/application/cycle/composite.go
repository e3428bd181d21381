package cycle

import (
	"context"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"go.uber.org/zap"
)

// moveParams is everything a worker needs for one operation, captured by
// value when the operation is submitted.
type moveParams struct {
	agent     string
	workstate string
	hub       string
	pose      domain.Pose
	tolerance domain.Tolerance
	mode      domain.CompletionMode
	kind      domain.CompletionType
	speed     float64
}

// awaitMove submits one move and blocks until the controller reports on it.
// Transport errors become failure statuses; they never escape the worker.
func awaitMove(ctx context.Context, gw ports.MoveGateway, logger *zap.Logger, p moveParams,
	leg domain.OperationKind, submit func(context.Context) (ports.Sequence, error)) domain.Status {
	seq, err := submit(ctx)
	if err != nil {
		return legError(ctx, logger, p, leg, err)
	}
	status, err := gw.WaitForMove(ctx, seq)
	if err != nil {
		return legError(ctx, logger, p, leg, err)
	}
	return status
}

func legError(ctx context.Context, logger *zap.Logger, p moveParams, leg domain.OperationKind, err error) domain.Status {
	if ctx.Err() != nil {
		return domain.StatusCanceled
	}
	logger.Warn("controller request failed",
		zap.String("agent", p.agent),
		zap.String("leg", string(leg)),
		zap.Error(err))
	return domain.StatusTransport
}

// pickAndPlace approaches the target pose, blind-moves onto it and carries
// the part to the hub. The first failing leg ends the operation and its
// status is the operation's status.
func pickAndPlace(gw ports.MoveGateway, logger *zap.Logger, p moveParams) func(context.Context) domain.Status {
	return func(ctx context.Context) domain.Status {
		legs := []struct {
			kind   domain.OperationKind
			submit func(context.Context) (ports.Sequence, error)
		}{
			{domain.KindMoveToPose, func(ctx context.Context) (ports.Sequence, error) {
				return gw.MoveToPose(ctx, p.agent, p.workstate, p.pose, p.tolerance, p.mode, p.kind, p.speed)
			}},
			{domain.KindBlindMove, func(ctx context.Context) (ports.Sequence, error) {
				return gw.BlindMove(ctx, p.agent, p.workstate, p.pose, domain.BlindAbsolute, p.speed)
			}},
			{domain.KindMoveToHub, func(ctx context.Context) (ports.Sequence, error) {
				return gw.MoveToHub(ctx, p.agent, p.workstate, p.hub, p.speed)
			}},
		}

		for _, leg := range legs {
			status := awaitMove(ctx, gw, logger, p, leg.kind, leg.submit)
			if !status.OK() {
				logger.Debug("pick and place leg failed",
					zap.String("agent", p.agent),
					zap.String("hub", p.hub),
					zap.String("leg", string(leg.kind)),
					zap.Stringer("status", status))
				return status
			}
		}
		return domain.StatusSuccess
	}
}

// moveToHub sends the agent to a hub; used for staging retreats.
func moveToHub(gw ports.MoveGateway, logger *zap.Logger, p moveParams) func(context.Context) domain.Status {
	return func(ctx context.Context) domain.Status {
		return awaitMove(ctx, gw, logger, p, domain.KindMoveToHub, func(ctx context.Context) (ports.Sequence, error) {
			return gw.MoveToHub(ctx, p.agent, p.workstate, p.hub, p.speed)
		})
	}
}
