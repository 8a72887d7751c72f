package domain

import "time"

// Tier is a subscription level that drives the monthly allowance.
type Tier string

const (
	TierBasic  Tier = "basic"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// MonthlyAllowance returns the coins granted each month for the tier.
// Zero means the tier has no allowance.
func (t Tier) MonthlyAllowance() int64 {
	switch t {
	case TierSilver:
		return 100
	case TierGold:
		return 250
	}
	return 0
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled" // Paid through the current period
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription is the read model the allowance job pages through.
type Subscription struct {
	UserID    string             `json:"user_id"`
	Tier      Tier               `json:"tier"`
	Status    SubscriptionStatus `json:"status"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// EarnsAllowance reports whether the subscription should receive coins this month.
func (s *Subscription) EarnsAllowance() bool {
	if s.Status != SubscriptionActive && s.Status != SubscriptionCancelled {
		return false
	}
	return s.Tier.MonthlyAllowance() > 0
}
