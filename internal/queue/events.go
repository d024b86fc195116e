package queue

import (
	"time"

	"reviewhub/internal/store"
)

// SubmittedEvent is published once per successful creation and carries
// the full review payload plus submission metadata, so the worker can
// build a compliance request without re-reading the row.
type SubmittedEvent struct {
	ReviewID     string    `json:"reviewId"`
	BusinessID   int64     `json:"businessId"`
	LocationID   *int64    `json:"locationId,omitempty"`
	ReviewerID   *int64    `json:"reviewerId,omitempty"`
	Email        *string   `json:"email,omitempty"`
	StarRating   int       `json:"starRating"`
	ReviewBody   string    `json:"reviewBody"`
	PhotoURLs    []string  `json:"photoUrls,omitempty"`
	ReviewAsAnon bool      `json:"reviewAsAnon"`
	IPAddress    *string   `json:"ipAddress,omitempty"`
	DeviceID     *string   `json:"deviceId,omitempty"`
	Geolocation  *string   `json:"geolocation,omitempty"`
	UserAgent    *string   `json:"userAgent,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewSubmittedEvent(review *store.Review) SubmittedEvent {
	return SubmittedEvent{
		ReviewID:     review.ID,
		BusinessID:   review.BusinessID,
		LocationID:   review.LocationID,
		ReviewerID:   review.ReviewerID,
		Email:        review.Email,
		StarRating:   review.Rating,
		ReviewBody:   review.Body,
		PhotoURLs:    review.PhotoURLs,
		ReviewAsAnon: review.Anonymous,
		IPAddress:    review.IPAddress,
		DeviceID:     review.DeviceID,
		Geolocation:  review.Geolocation,
		UserAgent:    review.UserAgent,
		CreatedAt:    review.CreatedAt,
	}
}
