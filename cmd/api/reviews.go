package main

import (
	"errors"
	"net"
	"net/http"
	"strconv"

	"reviewhub/internal/queue"
	"reviewhub/internal/reviews"
	"reviewhub/internal/store"

	"github.com/go-chi/chi/v5"
)

type createReviewPayload struct {
	BusinessID int64    `json:"business_id" validate:"required"`
	LocationID *int64   `json:"location_id"`
	ReviewerID *int64   `json:"reviewer_id"`
	Email      *string  `json:"email" validate:"omitempty,email"`
	Rating     int      `json:"rating" validate:"required,min=1,max=5"`
	Body       string   `json:"body" validate:"required"`
	PhotoURLs  []string `json:"photo_urls" validate:"omitempty,max=3,dive,url"`
	Anonymous  bool     `json:"anonymous"`
}

// CreateReview godoc
//
//	@Summary		Submit a review
//	@Description	Persists the review as pending and enqueues it for compliance validation.
//	@Tags			Reviews
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		createReviewPayload		true	"Review payload"
//	@Success		202		{object}	reviews.PublicReview	"Accepted, pending validation"
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error	"Business does not exist"
//	@Router			/reviews [post]
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	var payload createReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	meta := requestMetadata(r)

	review, err := app.reviews.Create(r.Context(), reviews.CreateInput{
		BusinessID: payload.BusinessID,
		LocationID: payload.LocationID,
		ReviewerID: payload.ReviewerID,
		Email:      payload.Email,
		Rating:     payload.Rating,
		Body:       payload.Body,
		PhotoURLs:  payload.PhotoURLs,
		Anonymous:  payload.Anonymous,
	}, meta)
	if err != nil {
		var validationErr *reviews.ValidationError
		switch {
		case errors.As(err, &validationErr):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, reviews.ErrBusinessNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	// The review is durably persisted at this point. A publish failure
	// leaves it pending until the event is re-emitted, so log loudly but
	// do not fail the request.
	if err := app.publisher.PublishWithRetry(r.Context(), queue.NewSubmittedEvent(review), 3); err != nil {
		// The stale-pending sweeper republishes the event for this row.
		app.logger.Errorw("failed to publish submitted event", "review_id", review.ID, "error", err)
	}

	app.jsonResponse(w, http.StatusAccepted, reviews.NewPublicReview(review))
}

// GetReview godoc
//
//	@Summary	Fetch one review by id
//	@Tags		Reviews
//	@Produce	json
//	@Param		reviewID	path		string	true	"Review ID"
//	@Success	200			{object}	reviews.PublicReview
//	@Failure	404			{object}	error
//	@Router		/reviews/{reviewID} [get]
func (app *application) getReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	review, err := app.reviews.Get(r.Context(), reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, reviews.NewPublicReview(review))
}

// ListBusinessReviews godoc
//
//	@Summary	List approved reviews for a business, newest first
//	@Tags		Reviews
//	@Produce	json
//	@Param		businessID	path		int	true	"Business ID"
//	@Success	200			{array}		reviews.PublicReview
//	@Failure	400			{object}	error
//	@Router		/businesses/{businessID}/reviews [get]
func (app *application) listBusinessReviewsHandler(w http.ResponseWriter, r *http.Request) {
	businessID, err := strconv.ParseInt(chi.URLParam(r, "businessID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid business ID"))
		return
	}

	list, err := app.reviews.ListApproved(r.Context(), businessID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	public := make([]reviews.PublicReview, 0, len(list))
	for i := range list {
		public = append(public, reviews.NewPublicReview(&list[i]))
	}

	app.jsonResponse(w, http.StatusOK, public)
}

// GetReviewStatus godoc
//
//	@Summary		Poll the validation status of a review
//	@Description	Requires the submitter's email; a mismatch behaves exactly like an unknown id.
//	@Tags			Reviews
//	@Produce		json
//	@Param			reviewID	path		string	true	"Review ID"
//	@Param			email		query		string	true	"Submitter email"
//	@Success		200			{object}	reviews.StatusProjection
//	@Failure		404			{object}	error
//	@Router			/reviews/{reviewID}/status [get]
func (app *application) getReviewStatusHandler(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	email := r.URL.Query().Get("email")
	if email == "" {
		app.badRequestResponse(w, r, errors.New("email query parameter is required"))
		return
	}

	projection, err := app.reviews.GetStatus(r.Context(), reviewID, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, projection)
}

type updateReviewPayload struct {
	ReviewerID *int64   `json:"reviewer_id"`
	Email      *string  `json:"email" validate:"omitempty,email"`
	Rating     *int     `json:"rating" validate:"omitempty,min=1,max=5"`
	Body       *string  `json:"body"`
	PhotoURLs  []string `json:"photo_urls" validate:"omitempty,max=3,dive,url"`
	Anonymous  *bool    `json:"anonymous"`
}

// UpdateReview godoc
//
//	@Summary		Edit a review
//	@Description	Owner-only: reviewer_id or email must match the stored owner.
//	@Tags			Reviews
//	@Accept			json
//	@Produce		json
//	@Param			reviewID	path		string				true	"Review ID"
//	@Param			payload		body		updateReviewPayload	true	"Partial edits plus owner identity"
//	@Success		200			{object}	store.Review
//	@Failure		400			{object}	error
//	@Failure		403			{object}	error
//	@Failure		404			{object}	error
//	@Router			/reviews/{reviewID} [patch]
func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	var payload updateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	review, err := app.reviews.Update(r.Context(), reviewID, reviews.UpdateInput{
		Rating:    payload.Rating,
		Body:      payload.Body,
		PhotoURLs: payload.PhotoURLs,
		Anonymous: payload.Anonymous,
	}, payload.ReviewerID, payload.Email)
	if err != nil {
		app.reviewErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, review)
}

// DeleteReview godoc
//
//	@Summary	Delete a review
//	@Tags		Reviews
//	@Produce	json
//	@Param		reviewID	path		string	true	"Review ID"
//	@Param		reviewer_id	query		int		false	"Owner reviewer id"
//	@Param		email		query		string	false	"Owner email"
//	@Success	200			{object}	map[string]string
//	@Failure	403			{object}	error
//	@Failure	404			{object}	error
//	@Router		/reviews/{reviewID} [delete]
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	reviewerID, email, err := ownerIdentityFromQuery(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.reviews.Delete(r.Context(), reviewID, reviewerID, email); err != nil {
		app.reviewErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "review deleted"})
}

// reviewErrorResponse maps the lifecycle error kinds onto HTTP statuses.
func (app *application) reviewErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *reviews.ValidationError
	switch {
	case errors.As(err, &validationErr):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, reviews.ErrForbidden):
		app.forbiddenResponse(w, r, err)
	case errors.Is(err, store.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, store.ErrConflict):
		app.conflictResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

func ownerIdentityFromQuery(r *http.Request) (*int64, *string, error) {
	var reviewerID *int64
	if raw := r.URL.Query().Get("reviewer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, nil, errors.New("invalid reviewer_id")
		}
		reviewerID = &id
	}

	var email *string
	if raw := r.URL.Query().Get("email"); raw != "" {
		email = &raw
	}

	return reviewerID, email, nil
}

// requestMetadata captures the submission-time client fingerprint.
func requestMetadata(r *http.Request) reviews.RequestMetadata {
	meta := reviews.RequestMetadata{}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip != "" {
		meta.IPAddress = &ip
	}

	if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
		meta.DeviceID = &deviceID
	}
	if geo := r.Header.Get("X-Geolocation"); geo != "" {
		meta.Geolocation = &geo
	}
	if ua := r.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}

	return meta
}
