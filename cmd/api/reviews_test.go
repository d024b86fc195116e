package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reviewhub/internal/reviews"
	"reviewhub/internal/store"

	"go.uber.org/zap"
)

func TestReviewErrorResponseStatusMapping(t *testing.T) {
	app := &application{logger: zap.NewNop().Sugar()}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &reviews.ValidationError{Field: "body", Message: "too short"}, http.StatusBadRequest},
		{"forbidden", reviews.ErrForbidden, http.StatusForbidden},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"photo cap race", store.ErrConflict, http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/reviews/rev-1/photos", nil)

			app.reviewErrorResponse(rec, req, tc.err)

			if rec.Code != tc.want {
				t.Fatalf("%v: got status %d, want %d", tc.err, rec.Code, tc.want)
			}
		})
	}
}
