package main

import (
	"context"
	"time"

	"reviewhub/internal/queue"
	"reviewhub/internal/store"

	"go.uber.org/zap"
)

const (
	sweepInterval  = time.Minute
	staleAfter     = 5 * time.Minute
	sweepBatchSize = 100
)

type stalePendingLister interface {
	ListStalePending(context.Context, time.Duration, int) ([]store.Review, error)
}

type eventPublisher interface {
	Publish(context.Context, queue.SubmittedEvent) error
}

// sweepStalePending closes the producer edge of the at-least-once
// contract. The submitted-event is the only trigger for validation, so
// a publish failure at creation time would otherwise strand the row in
// pending; this loop re-emits events for pending rows older than the
// grace period. Re-emission for a row whose original event is still in
// flight is harmless: the worker short-circuits settled reviews and
// the settle query guards on status.
func (app *application) sweepStalePending(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			republishStalePending(ctx, app.store.Reviews, app.publisher, app.logger)
		}
	}
}

func republishStalePending(ctx context.Context, reviews stalePendingLister, publisher eventPublisher, logger *zap.SugaredLogger) {
	stale, err := reviews.ListStalePending(ctx, staleAfter, sweepBatchSize)
	if err != nil {
		logger.Errorw("stale pending scan failed", "error", err)
		return
	}

	for i := range stale {
		if err := publisher.Publish(ctx, queue.NewSubmittedEvent(&stale[i])); err != nil {
			// Broker still down; the next tick retries from the same rows.
			logger.Errorw("failed to republish submitted event",
				"review_id", stale[i].ID, "error", err)
			return
		}
		logger.Infow("republished submitted event", "review_id", stale[i].ID)
	}
}
