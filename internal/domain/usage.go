package domain

import "time"

// Usage gating constants.
const (
	// TrialRequests is the number of unmetered trial swaps before the
	// trial is considered completed.
	TrialRequests = 15

	// PaidRequests is the request quota for a paid subscription.
	PaidRequests = 1000
)

// UsageRecord is the durable per-meter usage counter.
// Wire shape (JSON file store, see storage/file):
//
//	{"requests_count": 14, "trial_completed": false, "subscription_end": null}
type UsageRecord struct {
	RequestsCount   int64      `json:"requests_count"`
	TrialCompleted  bool       `json:"trial_completed"`
	SubscriptionEnd *time.Time `json:"subscription_end"`
}

// TrialRemaining returns how many trial requests are left, zero once the
// trial is completed.
func (r UsageRecord) TrialRemaining() int64 {
	if r.TrialCompleted {
		return 0
	}
	left := int64(TrialRequests) - r.RequestsCount
	if left < 0 {
		return 0
	}
	return left
}

// AccessDecision is the usage meter's verdict for one swap attempt.
type AccessDecision string

const (
	AccessAllowed             AccessDecision = "allowed"
	AccessTrialExhausted      AccessDecision = "trial_exhausted"
	AccessSubscriptionExpired AccessDecision = "subscription_expired"
	AccessQuotaExceeded       AccessDecision = "quota_exceeded"
)
