package domain

import (
	"fmt"
	"time"
)

// RewardType identifies a claimable reward.
type RewardType string

const (
	RewardFirstMatch        RewardType = "first_match"
	RewardCompleteProfile   RewardType = "complete_profile"
	RewardDailyLogin        RewardType = "daily_login"
	RewardWeekStreak        RewardType = "week_streak"
	RewardMonthStreak       RewardType = "month_streak"
	RewardFirstMessage      RewardType = "first_message"
	RewardPhotoVerification RewardType = "photo_verification"
	RewardReferFriend       RewardType = "refer_friend"
)

// RewardPeriod is how often a reward may be granted.
type RewardPeriod string

const (
	PeriodOnce  RewardPeriod = "once"
	PeriodDay   RewardPeriod = "day"
	PeriodWeek  RewardPeriod = "week"
	PeriodMonth RewardPeriod = "month"
	// PeriodPerReferral is granted once per referred user.
	PeriodPerReferral RewardPeriod = "per_referral"
)

// Label returns the UTC period bucket of at, or "" for non-periodic rewards.
func (p RewardPeriod) Label(at time.Time) string {
	at = at.UTC()
	switch p {
	case PeriodDay:
		return at.Format("2006-01-02")
	case PeriodWeek:
		y, w := at.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case PeriodMonth:
		return at.Format("2006-01")
	}
	return ""
}

// RewardDef describes the coins and cadence of one reward type.
type RewardDef struct {
	Type         RewardType
	Amount       int64
	Period       RewardPeriod
	ReasonDetail string
}

var rewardCatalog = map[RewardType]RewardDef{
	RewardFirstMatch:        {RewardFirstMatch, 50, PeriodOnce, "firstMatchReward"},
	RewardCompleteProfile:   {RewardCompleteProfile, 100, PeriodOnce, "completeProfileReward"},
	RewardDailyLogin:        {RewardDailyLogin, 10, PeriodDay, "dailyLoginStreakReward"},
	RewardWeekStreak:        {RewardWeekStreak, 50, PeriodWeek, "dailyLoginStreakReward"},
	RewardMonthStreak:       {RewardMonthStreak, 200, PeriodMonth, "dailyLoginStreakReward"},
	RewardFirstMessage:      {RewardFirstMessage, 25, PeriodOnce, "achievementReward"},
	RewardPhotoVerification: {RewardPhotoVerification, 75, PeriodOnce, "achievementReward"},
	RewardReferFriend:       {RewardReferFriend, 100, PeriodPerReferral, "achievementReward"},
}

// LookupReward returns the catalog entry for a reward type.
func LookupReward(t RewardType) (RewardDef, bool) {
	def, ok := rewardCatalog[t]
	return def, ok
}
