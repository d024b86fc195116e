package store

import (
	"math"
	"testing"
)

func TestStatusSettled(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusApproved, true},
		{StatusRejected, true},
		{StatusFlagged, true},
		{Status("garbage"), false},
	}
	for _, tc := range cases {
		if got := tc.status.Settled(); got != tc.want {
			t.Fatalf("%s.Settled() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestIdentityEmpty(t *testing.T) {
	if !(Identity{}).Empty() {
		t.Fatalf("zero identity must be empty")
	}

	ip := "10.0.0.1"
	if (Identity{IPAddress: &ip}).Empty() {
		t.Fatalf("identity with one channel must not be empty")
	}
}

func TestImbalanceRatio(t *testing.T) {
	cases := []struct {
		name  string
		stats ReviewStats
		want  float64
	}{
		{"empty window", ReviewStats{}, 0},
		// ratings [5,5,4,2,1]: 3 positive, 2 negative out of 5
		{"mixed", ReviewStats{Total: 5, Positive: 3, Negative: 2}, 0.2},
		{"all positive", ReviewStats{Total: 4, Positive: 4}, 1},
		{"all negative", ReviewStats{Total: 4, Negative: 4}, 1},
		{"all neutral", ReviewStats{Total: 3}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.stats.ImbalanceRatio()
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("ImbalanceRatio() = %v, want %v", got, tc.want)
			}
		})
	}
}
