package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coin-ledger/config"
	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// schedule fires a job once a day, or once a month on day 1, at a UTC clock time.
type schedule struct {
	job     domain.JobName
	hour    int
	minute  int
	monthly bool
}

// lastSlot returns the most recent firing time at or before now.
func (s schedule) lastSlot(now time.Time) time.Time {
	now = now.UTC()
	if s.monthly {
		slot := time.Date(now.Year(), now.Month(), 1, s.hour, s.minute, 0, 0, time.UTC)
		if slot.After(now) {
			slot = slot.AddDate(0, -1, 0)
		}
		return slot
	}
	slot := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if slot.After(now) {
		slot = slot.AddDate(0, 0, -1)
	}
	return slot
}

// Scheduler triggers the periodic ledger jobs. It checks the clock every
// CheckInterval and runs each job whose slot passed since the previous check.
// Slots missed while the process was down are not replayed; use the
// internal jobs endpoint or ledgerctl to catch up.
type Scheduler struct {
	jobs          ports.JobService
	schedules     []schedule
	CheckInterval time.Duration
	now           func() time.Time
	log           zerolog.Logger

	ticker *time.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   time.Time
}

// NewScheduler creates a scheduler from the jobs configuration.
func NewScheduler(jobs ports.JobService, cfg config.JobsConfig, log zerolog.Logger) (*Scheduler, error) {
	entries := []struct {
		job     domain.JobName
		at      string
		monthly bool
	}{
		{domain.JobSweepExpired, cfg.SweepAt, false},
		{domain.JobExpiryWarnings, cfg.WarningsAt, false},
		{domain.JobMonthlyAllowance, cfg.AllowanceAt, true},
	}

	s := &Scheduler{
		jobs:          jobs,
		CheckInterval: time.Minute,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
	}
	for _, e := range entries {
		hour, minute, err := parseClock(e.at)
		if err != nil {
			return nil, fmt.Errorf("schedule for %s: %w", e.job, err)
		}
		s.schedules = append(s.schedules, schedule{job: e.job, hour: hour, minute: minute, monthly: e.monthly})
	}
	return s, nil
}

func parseClock(at string) (int, int, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", at)
	}
	return t.Hour(), t.Minute(), nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.last = s.now()
	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run(ctx)

	s.log.Info().Dur("check_interval", s.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running job to observe cancellation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	s.wg.Wait()
	s.ticker = nil
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.tick(ctx, s.now())
		case <-ctx.Done():
			return
		}
	}
}

// tick runs every job with a slot in (last, now].
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	prev := s.last
	s.last = now

	for _, sch := range s.due(prev, now) {
		if ctx.Err() != nil {
			return
		}
		s.RunNow(ctx, sch.job)
	}
}

func (s *Scheduler) due(prev, now time.Time) []schedule {
	var due []schedule
	for _, sch := range s.schedules {
		slot := sch.lastSlot(now)
		if slot.After(prev) && !slot.After(now) {
			due = append(due, sch)
		}
	}
	return due
}

// RunNow runs one job immediately and logs its outcome.
func (s *Scheduler) RunNow(ctx context.Context, job domain.JobName) {
	s.log.Info().Str("job", string(job)).Msg("scheduler: running job")
	if _, err := s.jobs.Run(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job", string(job)).Msg("scheduler: job failed")
	}
}
