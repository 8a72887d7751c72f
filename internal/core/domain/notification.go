package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies a ledger-originated user notification.
type NotificationKind string

const (
	NotificationCoinsExpired  NotificationKind = "coins_expired"
	NotificationCoinsExpiring NotificationKind = "coins_expiring"
	NotificationCoinsCredited NotificationKind = "coins_credited"
)

// Notification is an in-app message, also handed to push delivery.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      NotificationKind  `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	Sent      bool              `json:"sent"`
	CreatedAt time.Time         `json:"created_at"`
}

// ExpiryWarning summarises the coins of a user that expire inside a window.
type ExpiryWarning struct {
	UserID          string    `json:"user_id"`
	ExpiringAmount  int64     `json:"expiring_amount"`
	EarliestExpiry  time.Time `json:"earliest_expiry"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
}

// NewExpiredNotification builds the message sent after a sweep removed coins.
func NewExpiredNotification(userID string, amount int64) Notification {
	return Notification{
		UserID: userID,
		Kind:   NotificationCoinsExpired,
		Title:  "Coins Expired",
		Body:   fmt.Sprintf("%d coins have expired from your account.", amount),
		Data:   map[string]string{"expired_coins": strconv.FormatInt(amount, 10)},
	}
}

// NewExpiringNotification builds the warning for coins about to expire.
func NewExpiringNotification(w ExpiryWarning) Notification {
	return Notification{
		UserID: w.UserID,
		Kind:   NotificationCoinsExpiring,
		Title:  "Coins Expiring Soon!",
		Body: fmt.Sprintf("%d coins will expire in %d days. Use them before they're gone!",
			w.ExpiringAmount, w.DaysUntilExpiry),
		Data: map[string]string{
			"expiring_coins":    strconv.FormatInt(w.ExpiringAmount, 10),
			"days_until_expiry": strconv.Itoa(w.DaysUntilExpiry),
		},
	}
}

// NewAllowanceNotification builds the message for a granted monthly allowance.
func NewAllowanceNotification(userID string, amount int64, tier Tier) Notification {
	return Notification{
		UserID: userID,
		Kind:   NotificationCoinsCredited,
		Title:  "Monthly Coins Added!",
		Body:   fmt.Sprintf("You received %d coins as part of your %s subscription", amount, tier),
		Data: map[string]string{
			"amount": strconv.FormatInt(amount, 10),
			"tier":   string(tier),
		},
	}
}

// NewCreditedNotification builds the message for any other credit.
func NewCreditedNotification(userID string, amount int64, reason Reason) Notification {
	return Notification{
		UserID: userID,
		Kind:   NotificationCoinsCredited,
		Title:  "Coins Added!",
		Body:   fmt.Sprintf("You received %d coins", amount),
		Data: map[string]string{
			"amount": strconv.FormatInt(amount, 10),
			"reason": reason.String(),
		},
	}
}
