package reviews

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"reviewhub/internal/store"

	"github.com/google/uuid"
)

const (
	MinBodyLength = 20
	MaxBodyLength = 500
	MaxPhotoURLs  = 3
)

type Store interface {
	Create(context.Context, *store.Review) error
	GetByID(context.Context, string) (*store.Review, error)
	GetApprovedByBusiness(context.Context, int64) ([]store.Review, error)
	Update(context.Context, *store.Review) error
	AddPhotoURL(context.Context, string, string) error
	Delete(context.Context, string) error
}

// BusinessDirectory is the "business exists" collaborator. A directory
// failure blocks creation: no review may reference an unverifiable
// business.
type BusinessDirectory interface {
	Exists(context.Context, int64) (bool, error)
}

type Service struct {
	reviews    Store
	businesses BusinessDirectory
}

func NewService(reviews Store, businesses BusinessDirectory) *Service {
	return &Service{reviews: reviews, businesses: businesses}
}

type CreateInput struct {
	BusinessID int64
	LocationID *int64
	ReviewerID *int64
	Email      *string
	Rating     int
	Body       string
	PhotoURLs  []string
	Anonymous  bool
}

// RequestMetadata is captured once at submission time and never edited.
type RequestMetadata struct {
	IPAddress   *string
	DeviceID    *string
	Geolocation *string
	UserAgent   *string
}

func (s *Service) Create(ctx context.Context, in CreateInput, meta RequestMetadata) (*store.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	if err := validateBody(in.Body); err != nil {
		return nil, err
	}
	if err := validatePhotoURLs(in.PhotoURLs); err != nil {
		return nil, err
	}
	if in.ReviewerID == nil && emptyString(in.Email) {
		return nil, invalidField("email", "either reviewer_id or email is required")
	}

	exists, err := s.businesses.Exists(ctx, in.BusinessID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrBusinessNotFound
	}

	review := &store.Review{
		ID:          uuid.NewString(),
		BusinessID:  in.BusinessID,
		LocationID:  in.LocationID,
		ReviewerID:  in.ReviewerID,
		Email:       in.Email,
		Rating:      in.Rating,
		Body:        in.Body,
		PhotoURLs:   in.PhotoURLs,
		Anonymous:   in.Anonymous,
		IPAddress:   meta.IPAddress,
		DeviceID:    meta.DeviceID,
		Geolocation: meta.Geolocation,
		UserAgent:   meta.UserAgent,
		Status:      store.StatusPending,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *Service) Get(ctx context.Context, id string) (*store.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

func (s *Service) ListApproved(ctx context.Context, businessID int64) ([]store.Review, error) {
	return s.reviews.GetApprovedByBusiness(ctx, businessID)
}

// StatusProjection is what a submitter may see while polling.
type StatusProjection struct {
	ID          string          `json:"id"`
	Status      store.Status    `json:"status"`
	ValidatedAt *time.Time      `json:"validated_at,omitempty"`
	Verdict     json.RawMessage `json:"validation_result,omitempty"`
}

// GetStatus returns the status projection only when the supplied email
// matches the stored one case-insensitively. Any mismatch behaves like
// not-found, so ids cannot be probed without knowing the email.
func (s *Service) GetStatus(ctx context.Context, id, email string) (*StatusProjection, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.Email == nil || !strings.EqualFold(*review.Email, email) {
		return nil, store.ErrNotFound
	}
	return &StatusProjection{
		ID:          review.ID,
		Status:      review.Status,
		ValidatedAt: review.ValidatedAt,
		Verdict:     review.Verdict,
	}, nil
}

type UpdateInput struct {
	Rating    *int
	Body      *string
	PhotoURLs []string
	Anonymous *bool
}

// Update applies the supplied fields after re-running the construction
// rules. Editing a settled review does not reset its status.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, reviewerID *int64, email *string) (*store.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(review, reviewerID, email) {
		return nil, ErrForbidden
	}

	if in.Rating != nil {
		if err := validateRating(*in.Rating); err != nil {
			return nil, err
		}
		review.Rating = *in.Rating
	}
	if in.Body != nil {
		if err := validateBody(*in.Body); err != nil {
			return nil, err
		}
		review.Body = *in.Body
	}
	if in.PhotoURLs != nil {
		if err := validatePhotoURLs(in.PhotoURLs); err != nil {
			return nil, err
		}
		review.PhotoURLs = in.PhotoURLs
	}
	if in.Anonymous != nil {
		review.Anonymous = *in.Anonymous
	}

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *Service) Delete(ctx context.Context, id string, reviewerID *int64, email *string) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ownerMatches(review, reviewerID, email) {
		return ErrForbidden
	}
	return s.reviews.Delete(ctx, id)
}

// VerifyOwner checks the supplied identity against the stored owner
// without applying any change. The photo upload handler calls it
// before the file leaves the request, so rejected callers never reach
// the upload backend.
func (s *Service) VerifyOwner(ctx context.Context, id string, reviewerID *int64, email *string) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ownerMatches(review, reviewerID, email) {
		return ErrForbidden
	}
	return nil
}

// AddPhoto appends an already-uploaded photo URL, keeping the 3-photo cap.
func (s *Service) AddPhoto(ctx context.Context, id, photoURL string, reviewerID *int64, email *string) (*store.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(review, reviewerID, email) {
		return nil, ErrForbidden
	}
	if len(review.PhotoURLs) >= MaxPhotoURLs {
		return nil, invalidField("photo_urls", "a review may carry at most 3 photos")
	}
	if err := s.reviews.AddPhotoURL(ctx, id, photoURL); err != nil {
		return nil, err
	}
	review.PhotoURLs = append(review.PhotoURLs, photoURL)
	return review, nil
}

// ownerMatches implements the authorization rule: reviewer id match, or
// case-insensitive email match. No identity supplied means no match.
func ownerMatches(review *store.Review, reviewerID *int64, email *string) bool {
	if reviewerID != nil && review.ReviewerID != nil && *reviewerID == *review.ReviewerID {
		return true
	}
	if email != nil && *email != "" && review.Email != nil && strings.EqualFold(*email, *review.Email) {
		return true
	}
	return false
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return invalidField("rating", "rating must be between 1 and 5")
	}
	return nil
}

func validateBody(body string) error {
	length := utf8.RuneCountInString(body)
	if length < MinBodyLength || length > MaxBodyLength {
		return invalidField("body", "body must be between 20 and 500 characters")
	}
	return nil
}

func validatePhotoURLs(urls []string) error {
	if len(urls) > MaxPhotoURLs {
		return invalidField("photo_urls", "a review may carry at most 3 photos")
	}
	return nil
}

func emptyString(s *string) bool {
	return s == nil || *s == ""
}
