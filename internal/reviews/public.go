package reviews

import (
	"time"

	"reviewhub/internal/store"
)

// PublicReview is the read model served on the unauthenticated surface.
// It carries none of the submission fingerprint (email, IP address,
// device id, geolocation, user agent) and no verdict payload;
// authorship is withheld when the review was submitted anonymously.
// The full record stays on owner-verified and internal paths.
type PublicReview struct {
	ID         string       `json:"id"`
	BusinessID int64        `json:"business_id"`
	LocationID *int64       `json:"location_id,omitempty"`
	ReviewerID *int64       `json:"reviewer_id,omitempty"`
	Rating     int          `json:"rating"`
	Body       string       `json:"body"`
	PhotoURLs  []string     `json:"photo_urls,omitempty"`
	Anonymous  bool         `json:"anonymous"`
	Status     store.Status `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func NewPublicReview(review *store.Review) PublicReview {
	public := PublicReview{
		ID:         review.ID,
		BusinessID: review.BusinessID,
		LocationID: review.LocationID,
		Rating:     review.Rating,
		Body:       review.Body,
		PhotoURLs:  review.PhotoURLs,
		Anonymous:  review.Anonymous,
		Status:     review.Status,
		CreatedAt:  review.CreatedAt,
		UpdatedAt:  review.UpdatedAt,
	}
	if !review.Anonymous {
		public.ReviewerID = review.ReviewerID
	}
	return public
}
