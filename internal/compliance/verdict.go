package compliance

import "time"

// CheckRequest is the wire request scored by the compliance rule engine.
type CheckRequest struct {
	ReviewID    string  `json:"reviewId"`
	BusinessID  int64   `json:"businessId"`
	LocationID  *int64  `json:"locationId,omitempty"`
	ReviewerID  *int64  `json:"reviewerId,omitempty"`
	Email       *string `json:"email,omitempty"`
	StarRating  int     `json:"starRating"`
	ReviewBody  string  `json:"reviewBody"`
	IPAddress   *string `json:"ipAddress,omitempty"`
	DeviceID    *string `json:"deviceId,omitempty"`
	Geolocation *string `json:"geolocation,omitempty"`
	UserAgent   *string `json:"userAgent,omitempty"`
	IsGuestUser bool    `json:"isGuestUser"`
}

// Verdict is the structured result of one compliance check. It is stored
// on the review as an opaque serialized blob, never as its own row.
type Verdict struct {
	IsValid       bool      `json:"isValid"`
	Level         int       `json:"level"`
	Errors        []string  `json:"errors"`
	Warnings      []string  `json:"warnings"`
	ExecutedRules []string  `json:"executedRules"`
	Timestamp     time.Time `json:"timestamp"`
}

// InvalidVerdict is the safe default substituted when the rule engine
// cannot be reached or its response cannot be decoded. It always
// rejects, so gateway outages never let a review through unchecked.
func InvalidVerdict(reason string) Verdict {
	return Verdict{
		IsValid:       false,
		Level:         0,
		Errors:        []string{reason},
		Warnings:      []string{},
		ExecutedRules: []string{},
		Timestamp:     time.Now().UTC(),
	}
}
