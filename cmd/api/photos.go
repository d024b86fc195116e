package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// UploadReviewPhoto godoc
//
//	@Summary		Attach a photo to a review
//	@Description	Owner-only. Uploads the file and appends its URL; a review holds at most 3 photos.
//	@Tags			Reviews
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			reviewID	path		string	true	"Review ID"
//	@Param			photo		formData	file	true	"Photo file"
//	@Success		200			{object}	map[string]string
//	@Failure		400			{object}	error
//	@Failure		403			{object}	error
//	@Router			/reviews/{reviewID}/photos [post]
func (app *application) uploadReviewPhotoHandler(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	const maxBytes = 15 * 1024 * 1024 // 15MB
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("failed to parse form: %w", err))
		return
	}

	reviewerID, email, err := ownerIdentityFromForm(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	// Authorize first so rejected callers cannot push files into the
	// Cloudinary account.
	if err := app.reviews.VerifyOwner(r.Context(), reviewID, reviewerID, email); err != nil {
		app.reviewErrorResponse(w, r, err)
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("failed to get photo from form: %w", err))
		return
	}
	defer file.Close()

	photoURL, err := app.uploadReviewPhotoToCloudinary(file, reviewID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	review, err := app.reviews.AddPhoto(r.Context(), reviewID, photoURL, reviewerID, email)
	if err != nil {
		app.reviewErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"photo_url":  photoURL,
		"photo_urls": review.PhotoURLs,
	})
}

func ownerIdentityFromForm(r *http.Request) (*int64, *string, error) {
	var reviewerID *int64
	if raw := r.FormValue("reviewer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, nil, errors.New("invalid reviewer_id")
		}
		reviewerID = &id
	}

	var email *string
	if raw := r.FormValue("email"); raw != "" {
		email = &raw
	}

	return reviewerID, email, nil
}
