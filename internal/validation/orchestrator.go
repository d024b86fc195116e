package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reviewhub/internal/compliance"
	"reviewhub/internal/mailer"
	"reviewhub/internal/queue"
	"reviewhub/internal/store"

	"go.uber.org/zap"
)

const lockTTL = 2 * time.Minute

type ReviewStore interface {
	GetByID(context.Context, string) (*store.Review, error)
	Settle(context.Context, string, store.Status, []byte, time.Time) (bool, error)
}

type Gateway interface {
	Check(context.Context, compliance.CheckRequest) compliance.Verdict
}

// Locker suppresses concurrent processing of the same review across
// workers. A nil Locker disables the guard.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Orchestrator settles one review per submitted-event: it asks the
// compliance gateway for a verdict, maps it to a terminal status,
// persists the transition and fires the matching notification.
type Orchestrator struct {
	reviews ReviewStore
	gateway Gateway
	mail    mailer.Client
	locks   Locker
	logger  *zap.SugaredLogger
}

func NewOrchestrator(reviews ReviewStore, gateway Gateway, mail mailer.Client, locks Locker, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		reviews: reviews,
		gateway: gateway,
		mail:    mail,
		locks:   locks,
		logger:  logger,
	}
}

// SettleStatus maps a verdict onto the terminal status. Precedence is
// total: invalid beats everything, warnings beat approval.
func SettleStatus(v compliance.Verdict) store.Status {
	switch {
	case !v.IsValid:
		return store.StatusRejected
	case len(v.Warnings) > 0:
		return store.StatusFlagged
	default:
		return store.StatusApproved
	}
}

// Handle processes one submitted-event. A non-nil return asks the
// transport for redelivery; a nil return acknowledges the event even
// when it was a no-op (review deleted, already settled).
func (o *Orchestrator) Handle(ctx context.Context, event queue.SubmittedEvent) error {
	if o.locks != nil {
		key := "validate:" + event.ReviewID
		acquired, err := o.locks.Acquire(ctx, key, lockTTL)
		if err != nil {
			o.logger.Warnw("lock acquire failed, proceeding without dedup guard",
				"review_id", event.ReviewID, "error", err)
		} else if !acquired {
			o.logger.Infow("review is being validated elsewhere, skipping",
				"review_id", event.ReviewID)
			return nil
		} else {
			defer func() {
				if err := o.locks.Release(context.WithoutCancel(ctx), key); err != nil {
					o.logger.Warnw("lock release failed", "review_id", event.ReviewID, "error", err)
				}
			}()
		}
	}

	review, err := o.reviews.GetByID(ctx, event.ReviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The event outlived its data, e.g. the review was deleted
			// between submission and validation.
			o.logger.Infow("review no longer exists, dropping event", "review_id", event.ReviewID)
			return nil
		}
		return fmt.Errorf("lookup review %s: %w", event.ReviewID, err)
	}

	if review.Status != store.StatusPending {
		// Redelivered event for an already-settled review. Re-running the
		// gateway would only waste a call and duplicate the notification.
		o.logger.Infow("review already settled, dropping event",
			"review_id", event.ReviewID, "status", review.Status)
		return nil
	}

	verdict := o.gateway.Check(ctx, buildCheckRequest(event))
	status := SettleStatus(verdict)

	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("serialize verdict for review %s: %w", event.ReviewID, err)
	}

	settled, err := o.reviews.Settle(ctx, event.ReviewID, status, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("settle review %s: %w", event.ReviewID, err)
	}
	if !settled {
		o.logger.Infow("review settled by a concurrent worker, skipping notification",
			"review_id", event.ReviewID)
		return nil
	}

	o.logger.Infow("review settled",
		"review_id", event.ReviewID,
		"status", status,
		"level", verdict.Level,
		"rules", len(verdict.ExecutedRules))

	o.notify(ctx, event, status, verdict)
	return nil
}

func buildCheckRequest(event queue.SubmittedEvent) compliance.CheckRequest {
	return compliance.CheckRequest{
		ReviewID:    event.ReviewID,
		BusinessID:  event.BusinessID,
		LocationID:  event.LocationID,
		ReviewerID:  event.ReviewerID,
		Email:       event.Email,
		StarRating:  event.StarRating,
		ReviewBody:  event.ReviewBody,
		IPAddress:   event.IPAddress,
		DeviceID:    event.DeviceID,
		Geolocation: event.Geolocation,
		UserAgent:   event.UserAgent,
		IsGuestUser: event.ReviewerID == nil,
	}
}

// notify fires exactly one outcome email. Delivery is best effort:
// failures are logged and swallowed, never retried through the pipeline.
func (o *Orchestrator) notify(ctx context.Context, event queue.SubmittedEvent, status store.Status, verdict compliance.Verdict) {
	recipient := mailer.FallbackRecipient
	if event.Email != nil && *event.Email != "" {
		recipient = *event.Email
	}

	data := struct {
		Username string
		ReviewID string
		Reasons  []string
		Warnings []string
	}{
		ReviewID: event.ReviewID,
		Reasons:  verdict.Errors,
		Warnings: verdict.Warnings,
	}

	var templateFile string
	switch status {
	case store.StatusApproved:
		templateFile = mailer.ReviewApprovedTemplate
	case store.StatusRejected:
		templateFile = mailer.ReviewRejectedTemplate
	case store.StatusFlagged:
		templateFile = mailer.ReviewFlaggedTemplate
	case store.StatusPending:
		// SettleStatus never returns pending.
		o.logger.Errorw("refusing to notify for non-terminal status", "review_id", event.ReviewID)
		return
	default:
		o.logger.Errorw("unknown status, no notification sent",
			"review_id", event.ReviewID, "status", status)
		return
	}

	if _, err := o.mail.Send(templateFile, "", recipient, data); err != nil {
		o.logger.Errorw("outcome notification failed",
			"review_id", event.ReviewID,
			"status", status,
			"error", err)
	}
}
