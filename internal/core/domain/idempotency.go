package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord binds a globally unique key to the transaction it produced.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	UserID        string    `json:"user_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// PurchaseKey keys a purchase credit by the store's purchase token.
func PurchaseKey(purchaseToken string) string {
	return "purchase:" + purchaseToken
}

// AllowanceKey keys the monthly allowance of a user: allowance:{user}:{YYYY-MM}.
func AllowanceKey(userID string, at time.Time) string {
	return fmt.Sprintf("allowance:%s:%s", userID, at.UTC().Format("2006-01"))
}

// RewardKey keys a reward grant. One-time rewards use reward:{user}:{type};
// periodic rewards append the UTC period the claim falls into.
func RewardKey(userID string, reward RewardType, at time.Time) string {
	base := fmt.Sprintf("reward:%s:%s", userID, reward)
	def, ok := LookupReward(reward)
	if !ok {
		return base
	}
	if p := def.Period.Label(at); p != "" {
		return base + ":" + p
	}
	return base
}

// ReferralKey keys a referral reward per referred user.
func ReferralKey(userID, referredUserID string) string {
	return fmt.Sprintf("reward:%s:%s:%s", userID, RewardReferFriend, referredUserID)
}
