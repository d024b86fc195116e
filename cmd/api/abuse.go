package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"reviewhub/internal/store"
)

// The abuse surface serves the compliance rule engine, not end users.
// Every check runs over settled reviews only and matches identity
// disjunctively on whichever channels the caller supplies.

// DuplicateCheck godoc
//
//	@Summary	Has this identity already reviewed this business recently?
//	@Tags		Abuse
//	@Produce	json
//	@Param		business_id	query		int		true	"Business ID"
//	@Param		reviewer_id	query		int		false	"Reviewer ID"
//	@Param		email		query		string	false	"Email"
//	@Param		ip_address	query		string	false	"IP address"
//	@Param		device_id	query		string	false	"Device ID"
//	@Param		hours		query		int		false	"Window in hours (default 72)"
//	@Success	200			{object}	map[string]bool
//	@Security	ApiKeyAuth
//	@Router		/internal/abuse/duplicate-check [get]
func (app *application) duplicateCheckHandler(w http.ResponseWriter, r *http.Request) {
	businessID, err := requiredInt64Param(r, "business_id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	identity, err := identityFromQuery(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	window := windowFromQuery(r, 72)

	hasDuplicate, err := app.store.Reviews.HasRecentSettledReview(r.Context(), businessID, identity, window)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]bool{"has_duplicate": hasDuplicate})
}

// FrequencyCheck godoc
//
//	@Summary	How many settled reviews has this identity posted recently, across all businesses?
//	@Tags		Abuse
//	@Produce	json
//	@Param		reviewer_id	query		int		false	"Reviewer ID"
//	@Param		email		query		string	false	"Email"
//	@Param		ip_address	query		string	false	"IP address"
//	@Param		device_id	query		string	false	"Device ID"
//	@Param		hours		query		int		false	"Window in hours (default 12)"
//	@Success	200			{object}	map[string]int
//	@Security	ApiKeyAuth
//	@Router		/internal/abuse/frequency-check [get]
func (app *application) frequencyCheckHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromQuery(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	window := windowFromQuery(r, 12)

	count, err := app.store.Reviews.CountRecentSettledReviews(r.Context(), identity, window)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]int{"count": count})
}

// CategoryCheck godoc
//
//	@Summary	Has this identity recently reviewed any business in the given category?
//	@Tags		Abuse
//	@Produce	json
//	@Param		category	query		string	true	"Business category"
//	@Param		reviewer_id	query		int		false	"Reviewer ID"
//	@Param		email		query		string	false	"Email"
//	@Param		ip_address	query		string	false	"IP address"
//	@Param		device_id	query		string	false	"Device ID"
//	@Param		hours		query		int		false	"Window in hours (default 12)"
//	@Success	200			{object}	map[string]bool
//	@Security	ApiKeyAuth
//	@Router		/internal/abuse/category-check [get]
func (app *application) categoryCheckHandler(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		app.badRequestResponse(w, r, errors.New("category query parameter is required"))
		return
	}

	identity, err := identityFromQuery(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	window := windowFromQuery(r, 12)

	hasReviewed, err := app.store.Reviews.HasSettledReviewInCategory(r.Context(), category, identity, window)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]bool{"has_reviewed": hasReviewed})
}

type spikeCheckResponse struct {
	TotalReviews    int     `json:"total_reviews"`
	PositiveReviews int     `json:"positive_reviews"`
	NegativeReviews int     `json:"negative_reviews"`
	ImbalanceRatio  float64 `json:"imbalance_ratio"`
}

// SpikeCheck godoc
//
//	@Summary	Rating distribution of a business over a recent window
//	@Tags		Abuse
//	@Produce	json
//	@Param		business_id	query		int	true	"Business ID"
//	@Param		hours		query		int	false	"Window in hours (default 1)"
//	@Success	200			{object}	spikeCheckResponse
//	@Security	ApiKeyAuth
//	@Router		/internal/abuse/spike-check [get]
func (app *application) spikeCheckHandler(w http.ResponseWriter, r *http.Request) {
	businessID, err := requiredInt64Param(r, "business_id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	window := windowFromQuery(r, 1)

	stats, err := app.store.Reviews.Stats(r.Context(), businessID, window)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, spikeCheckResponse{
		TotalReviews:    stats.Total,
		PositiveReviews: stats.Positive,
		NegativeReviews: stats.Negative,
		ImbalanceRatio:  stats.ImbalanceRatio(),
	})
}

func requiredInt64Param(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New(name + " query parameter is required")
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return value, nil
}

func identityFromQuery(r *http.Request) (store.Identity, error) {
	var identity store.Identity

	if raw := r.URL.Query().Get("reviewer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return identity, errors.New("invalid reviewer_id")
		}
		identity.ReviewerID = &id
	}
	if raw := r.URL.Query().Get("email"); raw != "" {
		identity.Email = &raw
	}
	if raw := r.URL.Query().Get("ip_address"); raw != "" {
		identity.IPAddress = &raw
	}
	if raw := r.URL.Query().Get("device_id"); raw != "" {
		identity.DeviceID = &raw
	}

	if identity.Empty() {
		return identity, errors.New("at least one identity channel is required")
	}
	return identity, nil
}

func windowFromQuery(r *http.Request, defaultHours int) time.Duration {
	hours := defaultHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	return time.Duration(hours) * time.Hour
}
