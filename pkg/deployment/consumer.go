package deployment

import (
	"context"
	"log/slog"

	"github.com/trydirect/stacker/pkg/bus"
)

// ProgressSource is satisfied by pkg/bus.Client.Consume.
type ProgressSource interface {
	Consume(ctx context.Context, queueName string) (<-chan bus.ProgressEvent, error)
}

// RunProgressConsumer drains progress events from the bus and applies them
// to their target deployment (§4.8). Each event is acked only after its
// database update commits, so a crash mid-apply redelivers instead of
// silently dropping the event; idempotent re-application (ApplyProgress)
// makes that redelivery safe.
func RunProgressConsumer(ctx context.Context, src ProgressSource, queueName string, svc *Service, logger *slog.Logger) error {
	events, err := src.Consume(ctx, queueName)
	if err != nil {
		return err
	}

	logger.Info("progress consumer started", "queue", queueName)
	for {
		select {
		case <-ctx.Done():
			logger.Info("progress consumer stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				logger.Warn("progress event channel closed")
				return nil
			}
			applyEvent(ctx, svc, ev, logger)
		}
	}
}

func applyEvent(ctx context.Context, svc *Service, ev bus.ProgressEvent, logger *slog.Logger) {
	if ev.DeployID == nil || *ev.DeployID == "" {
		logger.Warn("progress event missing deploy_id", "id", ev.ID)
		if err := ev.Ack(); err != nil {
			logger.Error("acking progress event", "error", err)
		}
		return
	}

	if err := svc.ApplyProgress(ctx, *ev.DeployID, Status(ev.Status)); err != nil {
		logger.Error("applying progress event", "error", err, "deploy_id", *ev.DeployID, "status", ev.Status)
		if nerr := ev.Nack(); nerr != nil {
			logger.Error("nacking progress event", "error", nerr)
		}
		return
	}

	if err := ev.Ack(); err != nil {
		logger.Error("acking progress event", "error", err)
	}
}
