package main

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestIdentityFromQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/internal/abuse/frequency-check?reviewer_id=42&email=a@b.com", nil)

	identity, err := identityFromQuery(r)
	if err != nil {
		t.Fatalf("identityFromQuery: %v", err)
	}
	if identity.ReviewerID == nil || *identity.ReviewerID != 42 {
		t.Fatalf("reviewer_id not parsed: %+v", identity)
	}
	if identity.Email == nil || *identity.Email != "a@b.com" {
		t.Fatalf("email not parsed: %+v", identity)
	}
	if identity.IPAddress != nil || identity.DeviceID != nil {
		t.Fatalf("absent channels must stay nil: %+v", identity)
	}
}

func TestIdentityFromQueryRequiresAChannel(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/internal/abuse/frequency-check", nil)
	if _, err := identityFromQuery(r); err == nil {
		t.Fatalf("expected error with no identity channel")
	}
}

func TestIdentityFromQueryRejectsBadReviewerID(t *testing.T) {
	r := httptest.NewRequest("GET", "/?reviewer_id=abc", nil)
	if _, err := identityFromQuery(r); err == nil {
		t.Fatalf("expected error on non-numeric reviewer_id")
	}
}

func TestWindowFromQuery(t *testing.T) {
	cases := []struct {
		url  string
		def  int
		want time.Duration
	}{
		{"/?hours=24", 72, 24 * time.Hour},
		{"/", 72, 72 * time.Hour},
		{"/?hours=0", 12, 12 * time.Hour},
		{"/?hours=-5", 12, 12 * time.Hour},
		{"/?hours=junk", 1, time.Hour},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", tc.url, nil)
		if got := windowFromQuery(r, tc.def); got != tc.want {
			t.Fatalf("%s (default %d): got %v, want %v", tc.url, tc.def, got, tc.want)
		}
	}
}

func TestRequiredInt64Param(t *testing.T) {
	r := httptest.NewRequest("GET", "/?business_id=10", nil)
	id, err := requiredInt64Param(r, "business_id")
	if err != nil || id != 10 {
		t.Fatalf("got (%d, %v)", id, err)
	}

	r = httptest.NewRequest("GET", "/", nil)
	if _, err := requiredInt64Param(r, "business_id"); err == nil {
		t.Fatalf("expected error on missing parameter")
	}

	r = httptest.NewRequest("GET", "/?business_id=ten", nil)
	if _, err := requiredInt64Param(r, "business_id"); err == nil {
		t.Fatalf("expected error on non-numeric parameter")
	}
}
