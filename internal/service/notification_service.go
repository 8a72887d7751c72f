package service

import (
	"context"
	"sync"
	"time"

	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"
	"coin-ledger/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// pushRetryIntervals are the waits between push attempts.
var pushRetryIntervals = []time.Duration{
	2 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// NotificationService implements ports.Notifier. Each notification is stored
// in-app and then handed to push delivery on a background goroutine, paced by
// a shared rate limiter so job runs do not flood the push provider.
type NotificationService struct {
	repo      ports.NotificationRepository
	push      ports.PushSender
	limiter   *rate.Limiter
	intervals []time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(
	repo ports.NotificationRepository,
	push ports.PushSender,
	ratePerSecond float64,
	burst int,
	log zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		push:      push,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), max(burst, 1)),
		intervals: pushRetryIntervals,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Notify delivers n asynchronously. It never blocks on I/O and never fails:
// the ledger mutation it reports has already been committed.
func (s *NotificationService) Notify(ctx context.Context, n domain.Notification) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(context.WithoutCancel(ctx), n)
	}()
}

// Wait blocks until every in-flight delivery finished or ctx is done.
func (s *NotificationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *NotificationService) deliver(ctx context.Context, n domain.Notification) {
	kind := string(n.Kind)

	if err := s.repo.Create(ctx, &n); err != nil {
		// The push still goes out; only the in-app copy is missing.
		s.log.Warn().Err(err).Str("user_id", n.UserID).Str("kind", kind).Msg("notification: failed to store in-app copy")
	}

	for attempt := 0; attempt <= len(s.intervals); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, s.intervals[attempt-1]); err != nil {
				return
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn().Err(err).Str("user_id", n.UserID).Msg("notification: rate limiter aborted")
			return
		}

		if err := s.push.Send(ctx, &n); err != nil {
			s.log.Warn().Err(err).Str("user_id", n.UserID).Str("kind", kind).Int("attempt", attempt+1).Msg("notification: push failed")
			continue
		}

		metrics.RecordNotification(kind, "sent")
		if err := s.repo.MarkSent(ctx, n.ID); err != nil {
			s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("notification: failed to mark sent")
		}
		s.log.Debug().Str("user_id", n.UserID).Str("kind", kind).Int("attempt", attempt+1).Msg("notification: delivered")
		return
	}

	metrics.RecordNotification(kind, "failed")
	s.log.Error().Str("user_id", n.UserID).Str("kind", kind).Msg("notification: all retry attempts exhausted")
}
