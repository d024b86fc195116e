package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"reviewhub/internal/compliance"
	"reviewhub/internal/queue"
	"reviewhub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReviewStore struct {
	review *store.Review
	getErr error

	settleErr    error
	settleResult bool

	settleCalls    int
	settledStatus  store.Status
	settledVerdict []byte
}

func (f *fakeReviewStore) GetByID(_ context.Context, _ string) (*store.Review, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copied := *f.review
	return &copied, nil
}

func (f *fakeReviewStore) Settle(_ context.Context, _ string, status store.Status, verdict []byte, _ time.Time) (bool, error) {
	f.settleCalls++
	f.settledStatus = status
	f.settledVerdict = verdict
	if f.settleErr != nil {
		return false, f.settleErr
	}
	return f.settleResult, nil
}

type fakeGateway struct {
	verdict compliance.Verdict
	calls   int
}

func (f *fakeGateway) Check(_ context.Context, _ compliance.CheckRequest) compliance.Verdict {
	f.calls++
	return f.verdict
}

type fakeMailer struct {
	err error

	sends      int
	templates  []string
	recipients []string
}

func (f *fakeMailer) Send(templateFile, _, email string, _ any) (int, error) {
	f.sends++
	f.templates = append(f.templates, templateFile)
	f.recipients = append(f.recipients, email)
	if f.err != nil {
		return 0, f.err
	}
	return 200, nil
}

type fakeLocker struct {
	acquired   bool
	acquireErr error
	released   int
}

func (f *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return f.acquired, f.acquireErr
}

func (f *fakeLocker) Release(_ context.Context, _ string) error {
	f.released++
	return nil
}

func pendingReview() *store.Review {
	email := "reviewer@example.com"
	return &store.Review{
		ID:         "rev-1",
		BusinessID: 10,
		Email:      &email,
		Rating:     5,
		Body:       "the service here was genuinely excellent",
		Status:     store.StatusPending,
	}
}

func eventFor(review *store.Review) queue.SubmittedEvent {
	return queue.SubmittedEvent{
		ReviewID:   review.ID,
		BusinessID: review.BusinessID,
		Email:      review.Email,
		StarRating: review.Rating,
		ReviewBody: review.Body,
	}
}

func newTestOrchestrator(reviews ReviewStore, gateway Gateway, mail *fakeMailer, locks Locker) *Orchestrator {
	return NewOrchestrator(reviews, gateway, mail, locks, zap.NewNop().Sugar())
}

func TestSettleStatus(t *testing.T) {
	cases := []struct {
		name    string
		verdict compliance.Verdict
		want    store.Status
	}{
		{"clean pass", compliance.Verdict{IsValid: true}, store.StatusApproved},
		{"warnings flag", compliance.Verdict{IsValid: true, Warnings: []string{"near-duplicate"}}, store.StatusFlagged},
		{"invalid rejects", compliance.Verdict{IsValid: false, Errors: []string{"profanity"}}, store.StatusRejected},
		{"invalid wins over warnings", compliance.Verdict{IsValid: false, Warnings: []string{"x"}}, store.StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SettleStatus(tc.verdict))
		})
	}
}

func TestHandleApprovesAndNotifies(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true, Level: 2}}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	err := o.Handle(context.Background(), eventFor(review))

	require.NoError(t, err)
	assert.Equal(t, 1, reviews.settleCalls)
	assert.Equal(t, store.StatusApproved, reviews.settledStatus)
	assert.NotEmpty(t, reviews.settledVerdict)
	require.Equal(t, 1, mail.sends)
	assert.Equal(t, "review_approved.tmpl", mail.templates[0])
	assert.Equal(t, "reviewer@example.com", mail.recipients[0])
}

func TestHandleFlagsOnWarnings(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true, Warnings: []string{"rapid submissions"}}}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Equal(t, store.StatusFlagged, reviews.settledStatus)
	require.Equal(t, 1, mail.sends)
	assert.Equal(t, "review_flagged.tmpl", mail.templates[0])
}

func TestHandleRejectsInvalid(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: false, Errors: []string{"banned phrase"}}}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Equal(t, store.StatusRejected, reviews.settledStatus)
	require.Equal(t, 1, mail.sends)
	assert.Equal(t, "review_rejected.tmpl", mail.templates[0])
}

func TestHandleGatewayFailureRejects(t *testing.T) {
	// The gateway never errors; on total failure it hands back the
	// synthetic invalid verdict, which must settle as rejected.
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.InvalidVerdict("compliance gateway unavailable")}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Equal(t, store.StatusRejected, reviews.settledStatus)
}

func TestHandleMissingReviewIsNoOp(t *testing.T) {
	reviews := &fakeReviewStore{getErr: store.ErrNotFound}
	gateway := &fakeGateway{}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	err := o.Handle(context.Background(), queue.SubmittedEvent{ReviewID: "gone"})

	require.NoError(t, err, "a deleted review must ack, not requeue")
	assert.Zero(t, gateway.calls)
	assert.Zero(t, mail.sends)
}

func TestHandleLookupFailureRequeues(t *testing.T) {
	reviews := &fakeReviewStore{getErr: errors.New("connection reset")}

	o := newTestOrchestrator(reviews, &fakeGateway{}, &fakeMailer{}, nil)
	err := o.Handle(context.Background(), queue.SubmittedEvent{ReviewID: "rev-1"})

	require.Error(t, err)
}

func TestHandleAlreadySettledSkipsGateway(t *testing.T) {
	review := pendingReview()
	review.Status = store.StatusApproved
	reviews := &fakeReviewStore{review: review}
	gateway := &fakeGateway{}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Zero(t, gateway.calls)
	assert.Zero(t, reviews.settleCalls)
	assert.Zero(t, mail.sends)
}

func TestHandleConcurrentSettleSkipsNotification(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: false}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true}}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Zero(t, mail.sends)
}

func TestHandleSettleFailureRequeues(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleErr: errors.New("write timeout")}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true}}
	mail := &fakeMailer{}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	err := o.Handle(context.Background(), eventFor(review))

	require.Error(t, err)
	assert.Zero(t, mail.sends)
}

func TestHandleNotificationFailureIsSwallowed(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true}}
	mail := &fakeMailer{err: errors.New("smtp down")}

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	err := o.Handle(context.Background(), eventFor(review))

	require.NoError(t, err, "notification delivery must not fail the pipeline")
	assert.Equal(t, 1, reviews.settleCalls)
}

func TestHandleNotifiesFallbackWithoutEmail(t *testing.T) {
	review := pendingReview()
	review.Email = nil
	reviewerID := int64(7)
	review.ReviewerID = &reviewerID
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true}}
	mail := &fakeMailer{}

	event := eventFor(review)
	event.Email = nil
	event.ReviewerID = &reviewerID

	o := newTestOrchestrator(reviews, gateway, mail, nil)
	require.NoError(t, o.Handle(context.Background(), event))

	require.Equal(t, 1, mail.sends)
	assert.Equal(t, "moderation@reviewhub.app", mail.recipients[0])
}

func TestHandleLockNotAcquiredSkips(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true}}
	locks := &fakeLocker{acquired: false}

	o := newTestOrchestrator(reviews, gateway, &fakeMailer{}, locks)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Zero(t, gateway.calls)
	assert.Zero(t, reviews.settleCalls)
}

func TestHandleLockErrorProceeds(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true}}
	locks := &fakeLocker{acquireErr: errors.New("redis down")}

	o := newTestOrchestrator(reviews, gateway, &fakeMailer{}, locks)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Equal(t, 1, reviews.settleCalls, "lock backend failure must not block settlement")
}

func TestHandleReleasesLock(t *testing.T) {
	review := pendingReview()
	reviews := &fakeReviewStore{review: review, settleResult: true}
	gateway := &fakeGateway{verdict: compliance.Verdict{IsValid: true}}
	locks := &fakeLocker{acquired: true}

	o := newTestOrchestrator(reviews, gateway, &fakeMailer{}, locks)
	require.NoError(t, o.Handle(context.Background(), eventFor(review)))

	assert.Equal(t, 1, locks.released)
}
