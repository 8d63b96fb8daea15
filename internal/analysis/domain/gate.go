package domain

import "time"

// GateDecision is the outcome of the cache/rate gate.
type GateDecision int

const (
	// GateProceed allows a new generation.
	GateProceed GateDecision = iota
	// GateCached returns the most recent completed analysis unchanged.
	GateCached
	// GateRateLimited rejects the request against the daily quota.
	GateRateLimited
)

// GatePolicy carries the tunables for the cache/rate gate.
type GatePolicy struct {
	FreshnessWindow time.Duration
	DailyQuota      int
}

// DecideGate decides whether an analysis request is served from cache,
// rejected for quota, or allowed to generate. The cache check runs first:
// within the freshness window the prior document is returned even to a caller
// who is already at their quota, which keeps repeated requests idempotent.
// Admins are never quota limited. completedLast24h counts completed records
// in the trailing 24 hours and is recomputed per request.
func DecideGate(lastCompletedAt *time.Time, completedLast24h int, isAdmin bool, policy GatePolicy, now time.Time) GateDecision {
	if lastCompletedAt != nil && now.Sub(*lastCompletedAt) < policy.FreshnessWindow {
		return GateCached
	}
	if !isAdmin && completedLast24h >= policy.DailyQuota {
		return GateRateLimited
	}
	return GateProceed
}
