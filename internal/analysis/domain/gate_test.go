package domain

import (
	"testing"
	"time"
)

func TestDecideGate(t *testing.T) {
	policy := GatePolicy{FreshnessWindow: time.Hour, DailyQuota: 3}
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	fresh := now.Add(-30 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	cases := []struct {
		name    string
		last    *time.Time
		count   int
		isAdmin bool
		want    GateDecision
	}{
		{"no history proceeds", nil, 0, false, GateProceed},
		{"fresh record is cached", &fresh, 0, false, GateCached},
		{"stale record proceeds", &stale, 1, false, GateProceed},
		{"quota reached", &stale, 3, false, GateRateLimited},
		{"over quota", &stale, 5, false, GateRateLimited},
		{"under quota proceeds", &stale, 2, false, GateProceed},
		{"admin ignores quota", &stale, 10, true, GateProceed},
		// Cache takes precedence over the quota check.
		{"fresh record cached even at quota", &fresh, 3, false, GateCached},
		{"fresh record cached for admin", &fresh, 10, true, GateCached},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecideGate(tc.last, tc.count, tc.isAdmin, policy, now)
			if got != tc.want {
				t.Errorf("DecideGate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecideGateWindowBoundary(t *testing.T) {
	policy := GatePolicy{FreshnessWindow: time.Hour, DailyQuota: 3}
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// A record exactly one window old is no longer fresh.
	boundary := now.Add(-time.Hour)
	if got := DecideGate(&boundary, 0, false, policy, now); got != GateProceed {
		t.Errorf("boundary-age record = %v, want proceed", got)
	}
}
