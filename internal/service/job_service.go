package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coin-ledger/config"
	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ledger"
	"coin-ledger/internal/core/ports"
	"coin-ledger/internal/metrics"
	"coin-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// JobServiceImpl implements ports.JobService. Every job pages through users by
// ascending id, processes a page on a bounded worker pool and checkpoints the
// last id of the page, so a re-triggered run resumes where it stopped. Each
// user is an independent atomic unit; a failing user never aborts the run.
type JobServiceImpl struct {
	ledger   ports.LedgerService
	balances ports.BalanceRepository
	batches  ports.BatchRepository
	subs     ports.SubscriptionRepository
	cursors  ports.CursorStore
	notifier ports.Notifier
	cfg      config.JobsConfig
	now      func() time.Time
	log      zerolog.Logger
}

// NewJobService creates a new JobServiceImpl.
func NewJobService(
	ledgerSvc ports.LedgerService,
	balances ports.BalanceRepository,
	batches ports.BatchRepository,
	subs ports.SubscriptionRepository,
	cursors ports.CursorStore,
	notifier ports.Notifier,
	cfg config.JobsConfig,
	log zerolog.Logger,
) *JobServiceImpl {
	return &JobServiceImpl{
		ledger:   ledgerSvc,
		balances: balances,
		batches:  batches,
		subs:     subs,
		cursors:  cursors,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// Run dispatches a job by name.
func (s *JobServiceImpl) Run(ctx context.Context, job domain.JobName) (*domain.JobSummary, error) {
	switch job {
	case domain.JobSweepExpired:
		return s.SweepExpired(ctx)
	case domain.JobExpiryWarnings:
		return s.SendExpiryWarnings(ctx)
	case domain.JobMonthlyAllowance:
		return s.GrantMonthlyAllowances(ctx)
	}
	return nil, apperror.Validation(fmt.Sprintf("unknown job %q", job))
}

// SweepExpired sweeps every user owning a batch that expired by now.
func (s *JobServiceImpl) SweepExpired(ctx context.Context) (*domain.JobSummary, error) {
	now := s.now()
	runKey := fmt.Sprintf("%s:%s", domain.JobSweepExpired, now.Format("2006-01-02"))

	fetch := func(ctx context.Context, after string) ([]string, error) {
		return s.batches.ListUserIDsExpiring(ctx, time.Time{}, now, after, s.cfg.PageSize)
	}
	handle := func(ctx context.Context, userID string) (domain.UserOutcome, int64, error) {
		out, err := s.ledger.SweepUser(ctx, userID, now)
		if err != nil {
			return domain.OutcomeFailed, 0, err
		}
		if out.ExpiredAmount == 0 && out.PrunedBatches == 0 {
			return domain.OutcomeSkipped, 0, nil
		}
		return domain.OutcomeProcessed, out.ExpiredAmount, nil
	}
	return runPaged(ctx, s, domain.JobSweepExpired, runKey, now, fetch, identity, handle)
}

// SendExpiryWarnings notifies users whose coins expire within the warning window.
func (s *JobServiceImpl) SendExpiryWarnings(ctx context.Context) (*domain.JobSummary, error) {
	now := s.now()
	runKey := fmt.Sprintf("%s:%s", domain.JobExpiryWarnings, now.Format("2006-01-02"))

	fetch := func(ctx context.Context, after string) ([]string, error) {
		return s.batches.ListUserIDsExpiring(ctx, now, now.Add(s.cfg.WarningWindow), after, s.cfg.PageSize)
	}
	handle := func(ctx context.Context, userID string) (domain.UserOutcome, int64, error) {
		state, err := s.balances.Get(ctx, userID)
		if err != nil {
			return domain.OutcomeFailed, 0, err
		}
		if state == nil {
			return domain.OutcomeSkipped, 0, nil
		}
		w, ok := ledger.ExpiringWithin(*state, now, s.cfg.WarningWindow)
		if !ok {
			return domain.OutcomeSkipped, 0, nil
		}
		s.notifier.Notify(ctx, domain.NewExpiringNotification(w))
		return domain.OutcomeProcessed, w.ExpiringAmount, nil
	}
	return runPaged(ctx, s, domain.JobExpiryWarnings, runKey, now, fetch, identity, handle)
}

// GrantMonthlyAllowances credits the current month's allowance to every
// eligible subscriber. Allowance keys make re-runs within the month no-ops.
func (s *JobServiceImpl) GrantMonthlyAllowances(ctx context.Context) (*domain.JobSummary, error) {
	now := s.now()
	runKey := fmt.Sprintf("%s:%s", domain.JobMonthlyAllowance, now.Format("2006-01"))

	fetch := func(ctx context.Context, after string) ([]domain.Subscription, error) {
		return s.subs.ListAllowanceEligible(ctx, after, s.cfg.PageSize)
	}
	keyOf := func(sub domain.Subscription) string { return sub.UserID }
	handle := func(ctx context.Context, sub domain.Subscription) (domain.UserOutcome, int64, error) {
		res, err := s.ledger.GrantAllowance(ctx, sub, now)
		if err != nil {
			return domain.OutcomeFailed, 0, err
		}
		if res == nil || res.Replayed {
			return domain.OutcomeSkipped, 0, nil
		}
		return domain.OutcomeProcessed, res.Record.Amount, nil
	}
	return runPaged(ctx, s, domain.JobMonthlyAllowance, runKey, now, fetch, keyOf, handle)
}

func identity(id string) string { return id }

// runPaged drives one job run over cursor-ordered pages of T.
func runPaged[T any](
	ctx context.Context,
	s *JobServiceImpl,
	job domain.JobName,
	runKey string,
	now time.Time,
	fetch func(ctx context.Context, after string) ([]T, error),
	keyOf func(T) string,
	handle func(ctx context.Context, item T) (domain.UserOutcome, int64, error),
) (*domain.JobSummary, error) {
	log := s.log.With().Str("job", string(job)).Str("run", runKey).Logger()
	summary := &domain.JobSummary{Job: job, StartedAt: now}

	after, err := s.cursors.Load(ctx, runKey)
	if err != nil {
		log.Warn().Err(err).Msg("job: cursor unavailable, starting from the beginning")
		after = ""
	}
	if after != "" {
		summary.Resumed = true
		log.Info().Str("after", after).Msg("job: resuming interrupted run")
	}

	finish := func(err error) (*domain.JobSummary, error) {
		summary.FinishedAt = s.now()
		summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
		result := "ok"
		if err != nil {
			result = "failed"
		}
		metrics.RecordJobRun(string(job), result)

		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Int("processed", summary.Processed).
			Int("skipped", summary.Skipped).
			Int("failed", summary.Failed).
			Int64("amount", summary.Amount).
			Int("pages", summary.Pages).
			Dur("duration", summary.Duration).
			Msg("job finished")
		return summary, err
	}

	var mu sync.Mutex
	for {
		items, err := fetch(ctx, after)
		if err != nil {
			return finish(fmt.Errorf("fetch page after %q: %w", after, err))
		}
		if len(items) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)
		for _, item := range items {
			g.Go(func() error {
				outcome, amount, err := handle(ctx, item)
				if err != nil {
					log.Warn().Err(err).
						Str("user_id", keyOf(item)).
						Str("error_kind", domain.ErrorKind(err)).
						Msg("job: user failed")
				}

				mu.Lock()
				defer mu.Unlock()
				switch outcome {
				case domain.OutcomeProcessed:
					summary.Processed++
					summary.Amount += amount
					metrics.RecordJobUser(string(job), "processed")
				case domain.OutcomeFailed:
					summary.Failed++
					metrics.RecordJobUser(string(job), "failed")
				default:
					summary.Skipped++
					metrics.RecordJobUser(string(job), "skipped")
				}
				return nil
			})
		}
		_ = g.Wait()
		summary.Pages++

		after = keyOf(items[len(items)-1])
		if err := s.cursors.Save(ctx, runKey, after, s.cfg.CursorTTL); err != nil {
			log.Warn().Err(err).Str("after", after).Msg("job: failed to checkpoint cursor")
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if len(items) < s.cfg.PageSize {
			break
		}
	}

	if err := s.cursors.Clear(ctx, runKey); err != nil {
		log.Warn().Err(err).Msg("job: failed to clear cursor")
	}
	return finish(nil)
}
