package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFlagged  Status = "flagged"
)

// Settled reports whether the review has left the pending state. Only
// settled reviews are visible to the abuse queries below.
func (s Status) Settled() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusFlagged:
		return true
	case StatusPending:
		return false
	}
	return false
}

type Review struct {
	ID          string    `json:"id"`
	BusinessID  int64     `json:"business_id"`
	LocationID  *int64    `json:"location_id,omitempty"`
	ReviewerID  *int64    `json:"reviewer_id,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Rating      int       `json:"rating"` // 1-5
	Body        string    `json:"body"`
	PhotoURLs   []string  `json:"photo_urls,omitempty"`
	Anonymous   bool      `json:"anonymous"`
	IPAddress   *string   `json:"ip_address,omitempty"`
	DeviceID    *string   `json:"device_id,omitempty"`
	Geolocation *string   `json:"geolocation,omitempty"`
	UserAgent   *string   `json:"user_agent,omitempty"`
	Status      Status    `json:"status"`
	Verdict     []byte    `json:"validation_result,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Identity is the disjunctive match used by the abuse queries: a row
// counts if it matches on any supplied channel. Nil fields never match.
type Identity struct {
	ReviewerID *int64
	Email      *string
	IPAddress  *string
	DeviceID   *string
}

func (id Identity) Empty() bool {
	return id.ReviewerID == nil && id.Email == nil && id.IPAddress == nil && id.DeviceID == nil
}

type ReviewStats struct {
	Total    int `json:"total_reviews"`
	Positive int `json:"positive_reviews"` // rating >= 4
	Negative int `json:"negative_reviews"` // rating <= 2
}

// ImbalanceRatio is |positive/total - negative/total|, 0 for an empty window.
func (s ReviewStats) ImbalanceRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return math.Abs(float64(s.Positive)/float64(s.Total) - float64(s.Negative)/float64(s.Total))
}

type ReviewStore struct {
	db *pgxpool.Pool
}

func (s *ReviewStore) Create(ctx context.Context, review *Review) error {
	query := `
        INSERT INTO reviews
            (id, business_id, location_id, reviewer_id, email, rating, body,
             photo_urls, anonymous, ip_address, device_id, geolocation, user_agent, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING created_at, updated_at
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.db.QueryRow(ctx, query,
		review.ID,
		review.BusinessID,
		review.LocationID,
		review.ReviewerID,
		review.Email,
		review.Rating,
		review.Body,
		review.PhotoURLs,
		review.Anonymous,
		review.IPAddress,
		review.DeviceID,
		review.Geolocation,
		review.UserAgent,
		review.Status,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
}

func (s *ReviewStore) GetByID(ctx context.Context, id string) (*Review, error) {
	query := `
        SELECT id, business_id, location_id, reviewer_id, email, rating, body,
               photo_urls, anonymous, ip_address, device_id, geolocation, user_agent,
               status, validation_result, validated_at, created_at, updated_at
        FROM reviews
        WHERE id = $1
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	err := s.db.QueryRow(ctx, query, id).Scan(
		&review.ID,
		&review.BusinessID,
		&review.LocationID,
		&review.ReviewerID,
		&review.Email,
		&review.Rating,
		&review.Body,
		&review.PhotoURLs,
		&review.Anonymous,
		&review.IPAddress,
		&review.DeviceID,
		&review.Geolocation,
		&review.UserAgent,
		&review.Status,
		&review.Verdict,
		&review.ValidatedAt,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

// GetApprovedByBusiness is the public read path. It never returns
// pending, rejected or flagged rows.
func (s *ReviewStore) GetApprovedByBusiness(ctx context.Context, businessID int64) ([]Review, error) {
	query := `
        SELECT id, business_id, location_id, reviewer_id, email, rating, body,
               photo_urls, anonymous, created_at, updated_at
        FROM reviews
        WHERE business_id = $1 AND status = 'approved'
        ORDER BY created_at DESC
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		err := rows.Scan(
			&review.ID,
			&review.BusinessID,
			&review.LocationID,
			&review.ReviewerID,
			&review.Email,
			&review.Rating,
			&review.Body,
			&review.PhotoURLs,
			&review.Anonymous,
			&review.CreatedAt,
			&review.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		review.Status = StatusApproved
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (s *ReviewStore) Update(ctx context.Context, review *Review) error {
	query := `
        UPDATE reviews
        SET rating = $2, body = $3, photo_urls = $4, anonymous = $5, updated_at = now()
        WHERE id = $1
        RETURNING updated_at
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, query,
		review.ID,
		review.Rating,
		review.Body,
		review.PhotoURLs,
		review.Anonymous,
	).Scan(&review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// AddPhotoURL appends one photo URL, refusing to grow past three.
func (s *ReviewStore) AddPhotoURL(ctx context.Context, id string, photoURL string) error {
	query := `
        UPDATE reviews
        SET photo_urls = array_append(photo_urls, $2), updated_at = now()
        WHERE id = $1 AND coalesce(cardinality(photo_urls), 0) < 3
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, query, id, photoURL)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *ReviewStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Settle moves a pending review to its terminal status and attaches the
// serialized verdict. The status guard makes the transition happen at
// most once: a redelivered event that races another worker sees zero
// rows affected and reports settled=false.
func (s *ReviewStore) Settle(ctx context.Context, id string, status Status, verdict []byte, validatedAt time.Time) (bool, error) {
	query := `
        UPDATE reviews
        SET status = $2, validation_result = $3, validated_at = $4, updated_at = now()
        WHERE id = $1 AND status = 'pending'
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, query, id, status, verdict, validatedAt)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// identityPredicate matches a row on any supplied identity channel.
// Parameter positions are fixed: $2 reviewer id, $3 email, $4 ip, $5 device.
const identityPredicate = `(
           ($2::bigint IS NOT NULL AND r.reviewer_id = $2)
        OR ($3::text   IS NOT NULL AND lower(r.email) = lower($3))
        OR ($4::text   IS NOT NULL AND r.ip_address = $4)
        OR ($5::text   IS NOT NULL AND r.device_id = $5)
    )`

func (s *ReviewStore) HasRecentSettledReview(ctx context.Context, businessID int64, identity Identity, window time.Duration) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM reviews r
            WHERE r.business_id = $1
              AND r.status <> 'pending'
              AND r.created_at >= $6
              AND ` + identityPredicate + `
        )
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx, query,
		businessID,
		identity.ReviewerID,
		identity.Email,
		identity.IPAddress,
		identity.DeviceID,
		time.Now().Add(-window),
	).Scan(&exists)
	return exists, err
}

// CountRecentSettledReviews counts across all businesses, so the
// identity predicate is inlined with its own parameter positions.
func (s *ReviewStore) CountRecentSettledReviews(ctx context.Context, identity Identity, window time.Duration) (int, error) {
	query := `
        SELECT COUNT(r.id) FROM reviews r
        WHERE r.status <> 'pending'
          AND r.created_at >= $5
          AND (
                   ($1::bigint IS NOT NULL AND r.reviewer_id = $1)
                OR ($2::text   IS NOT NULL AND lower(r.email) = lower($2))
                OR ($3::text   IS NOT NULL AND r.ip_address = $3)
                OR ($4::text   IS NOT NULL AND r.device_id = $4)
          )
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var count int
	err := s.db.QueryRow(ctx, query,
		identity.ReviewerID,
		identity.Email,
		identity.IPAddress,
		identity.DeviceID,
		time.Now().Add(-window),
	).Scan(&count)
	return count, err
}

func (s *ReviewStore) HasSettledReviewInCategory(ctx context.Context, category string, identity Identity, window time.Duration) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM reviews r
            JOIN businesses b ON b.id = r.business_id
            WHERE b.category = $1
              AND r.status <> 'pending'
              AND r.created_at >= $6
              AND ` + identityPredicate + `
        )
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx, query,
		category,
		identity.ReviewerID,
		identity.Email,
		identity.IPAddress,
		identity.DeviceID,
		time.Now().Add(-window),
	).Scan(&exists)
	return exists, err
}

func (s *ReviewStore) Stats(ctx context.Context, businessID int64, window time.Duration) (ReviewStats, error) {
	query := `
        SELECT
            COUNT(id),
            COUNT(id) FILTER (WHERE rating >= 4),
            COUNT(id) FILTER (WHERE rating <= 2)
        FROM reviews
        WHERE business_id = $1
          AND status <> 'pending'
          AND created_at >= $2
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var stats ReviewStats
	err := s.db.QueryRow(ctx, query, businessID, time.Now().Add(-window)).
		Scan(&stats.Total, &stats.Positive, &stats.Negative)
	return stats, err
}

// ListStalePending returns pending reviews created before the cutoff,
// oldest first. A pending row older than the grace period means the
// submitted-event may never have reached the broker; the API's
// republisher re-emits it from these rows.
func (s *ReviewStore) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]Review, error) {
	query := `
        SELECT id, business_id, location_id, reviewer_id, email, rating, body,
               photo_urls, anonymous, ip_address, device_id, geolocation, user_agent, created_at
        FROM reviews
        WHERE status = 'pending' AND created_at < $1
        ORDER BY created_at ASC
        LIMIT $2
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		err := rows.Scan(
			&review.ID,
			&review.BusinessID,
			&review.LocationID,
			&review.ReviewerID,
			&review.Email,
			&review.Rating,
			&review.Body,
			&review.PhotoURLs,
			&review.Anonymous,
			&review.IPAddress,
			&review.DeviceID,
			&review.Geolocation,
			&review.UserAgent,
			&review.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		review.Status = StatusPending
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}
