package domain

import "time"

// JobName identifies a periodic ledger job.
type JobName string

const (
	JobSweepExpired     JobName = "sweep_expired"
	JobExpiryWarnings   JobName = "expiry_warnings"
	JobMonthlyAllowance JobName = "monthly_allowance"
)

// Valid reports whether j names a known job.
func (j JobName) Valid() bool {
	switch j {
	case JobSweepExpired, JobExpiryWarnings, JobMonthlyAllowance:
		return true
	}
	return false
}

// JobSummary is the outcome of one job run. Failed users never abort a run.
type JobSummary struct {
	Job        JobName       `json:"job"`
	Processed  int           `json:"processed"` // Users whose state changed or were notified
	Skipped    int           `json:"skipped"`   // Users with nothing to do
	Failed     int           `json:"failed"`
	Amount     int64         `json:"amount"` // Coins expired, warned about or granted
	Pages      int           `json:"pages"`
	Resumed    bool          `json:"resumed"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// UserOutcome is what a job did for a single user.
type UserOutcome int

const (
	OutcomeSkipped UserOutcome = iota
	OutcomeProcessed
	OutcomeFailed
)
