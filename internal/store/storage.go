package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Reviews interface {
		Create(context.Context, *Review) error
		GetByID(context.Context, string) (*Review, error)
		GetApprovedByBusiness(context.Context, int64) ([]Review, error)
		Update(context.Context, *Review) error
		AddPhotoURL(context.Context, string, string) error
		Delete(context.Context, string) error
		Settle(context.Context, string, Status, []byte, time.Time) (bool, error)
		HasRecentSettledReview(context.Context, int64, Identity, time.Duration) (bool, error)
		CountRecentSettledReviews(context.Context, Identity, time.Duration) (int, error)
		HasSettledReviewInCategory(context.Context, string, Identity, time.Duration) (bool, error)
		Stats(context.Context, int64, time.Duration) (ReviewStats, error)
		ListStalePending(context.Context, time.Duration, int) ([]Review, error)
	}
	Businesses interface {
		Exists(context.Context, int64) (bool, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Reviews:    &ReviewStore{db},
		Businesses: &BusinessStore{db},
	}
}
