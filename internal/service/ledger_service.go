package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"coin-ledger/config"
	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ledger"
	"coin-ledger/internal/core/ports"
	"coin-ledger/internal/metrics"
	"coin-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxRetryDelay       = time.Second
)

// LedgerServiceImpl implements ports.LedgerService. Every mutation is one
// read-modify-write DB transaction around a pure ledger.Engine call.
type LedgerServiceImpl struct {
	engine     *ledger.Engine
	balances   ports.BalanceRepository
	batches    ports.BatchRepository
	txRepo     ports.TransactionRepository
	guard      *IdempotencyGuard
	transactor ports.DBTransactor
	notifier   ports.Notifier
	cfg        config.LedgerConfig
	window     time.Duration
	log        zerolog.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLedgerService creates a new LedgerServiceImpl. window is the horizon of
// the "expiring soon" hint returned with balances.
func NewLedgerService(
	engine *ledger.Engine,
	balances ports.BalanceRepository,
	batches ports.BatchRepository,
	txRepo ports.TransactionRepository,
	guard *IdempotencyGuard,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	cfg config.LedgerConfig,
	window time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		engine:     engine,
		balances:   balances,
		batches:    batches,
		txRepo:     txRepo,
		guard:      guard,
		transactor: transactor,
		notifier:   notifier,
		cfg:        cfg,
		window:     window,
		log:        log,
		sleep:      sleepCtx,
	}
}

// Credit adds coins from an internal caller (gift, refund, promotion).
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.CreditRequest) (*ports.CreditResult, error) {
	if !req.Source.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown source %q", req.Source)).WithErr(domain.ErrInvalidSource)
	}
	if !req.Reason.Kind.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown reason %q", req.Reason.Kind))
	}

	expiresAt := s.engine.Now().Add(s.cfg.Expiration())
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
	}

	in := ledger.CreditInput{
		Amount:         req.Amount,
		Source:         req.Source,
		Reason:         req.Reason,
		ExpiresAt:      expiresAt,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	}
	return s.credit(ctx, "credit", req.UserID, in, func(rec *domain.TransactionRecord) domain.Notification {
		return domain.NewCreditedNotification(rec.UserID, rec.Amount, rec.Reason)
	})
}

// CreditPurchase credits a verified store purchase. The purchase token is
// the idempotency key, so a re-delivered store callback is a replay.
func (s *LedgerServiceImpl) CreditPurchase(ctx context.Context, req ports.PurchaseRequest) (*ports.CreditResult, error) {
	pkg, ok := domain.LookupPackage(req.PackageID)
	if !ok {
		return nil, apperror.ErrUnknownPackage()
	}
	if req.PurchaseToken == "" {
		return nil, apperror.Validation("purchase token is required")
	}

	in := ledger.CreditInput{
		Amount:         pkg.Coins,
		Source:         domain.SourcePurchased,
		Reason:         domain.Reason{Kind: domain.ReasonPurchase, Detail: pkg.ID},
		ExpiresAt:      s.engine.Now().Add(s.cfg.Expiration()),
		IdempotencyKey: domain.PurchaseKey(req.PurchaseToken),
		Metadata: map[string]string{
			"package_id": pkg.ID,
			"price":      pkg.Price.StringFixed(2),
			"unit_price": pkg.UnitPrice().String(),
			"currency":   pkg.Currency,
			"platform":   string(req.Platform),
		},
	}
	return s.credit(ctx, "purchase", req.UserID, in, func(rec *domain.TransactionRecord) domain.Notification {
		return domain.NewCreditedNotification(rec.UserID, rec.Amount, rec.Reason)
	})
}

// ClaimReward grants a catalog reward once per key period.
func (s *LedgerServiceImpl) ClaimReward(ctx context.Context, req ports.RewardClaimRequest) (*ports.CreditResult, error) {
	def, ok := domain.LookupReward(req.Reward)
	if !ok {
		return nil, apperror.ErrUnknownReward()
	}

	now := s.engine.Now()
	key := domain.RewardKey(req.UserID, req.Reward, now)
	metadata := map[string]string{"reward": string(req.Reward)}
	if def.Period == domain.PeriodPerReferral {
		if req.ReferredUserID == "" {
			return nil, apperror.Validation("referred_user_id is required for refer_friend")
		}
		if req.ReferredUserID == req.UserID {
			return nil, apperror.Validation("users cannot refer themselves")
		}
		key = domain.ReferralKey(req.UserID, req.ReferredUserID)
		metadata["referred_user_id"] = req.ReferredUserID
	}

	in := ledger.CreditInput{
		Amount:         def.Amount,
		Source:         domain.SourceEarned,
		Reason:         domain.Reason{Kind: domain.ReasonReward, Detail: def.ReasonDetail},
		ExpiresAt:      now.Add(s.cfg.Expiration()),
		IdempotencyKey: key,
		Metadata:       metadata,
	}
	return s.credit(ctx, "reward", req.UserID, in, func(rec *domain.TransactionRecord) domain.Notification {
		return domain.NewCreditedNotification(rec.UserID, rec.Amount, rec.Reason)
	})
}

// GrantAllowance credits the monthly subscription allowance for the month
// containing at. It returns nil, nil for subscriptions without an allowance.
func (s *LedgerServiceImpl) GrantAllowance(ctx context.Context, sub domain.Subscription, at time.Time) (*ports.CreditResult, error) {
	if !sub.EarnsAllowance() {
		return nil, nil
	}
	amount := sub.Tier.MonthlyAllowance()

	in := ledger.CreditInput{
		Amount:         amount,
		Source:         domain.SourceAllowance,
		Reason:         domain.Reason{Kind: domain.ReasonAllowance, Detail: string(sub.Tier)},
		ExpiresAt:      s.engine.Now().Add(s.cfg.Expiration()),
		IdempotencyKey: domain.AllowanceKey(sub.UserID, at),
		Metadata: map[string]string{
			"tier":   string(sub.Tier),
			"period": at.UTC().Format("2006-01"),
		},
	}
	return s.credit(ctx, "allowance", sub.UserID, in, func(rec *domain.TransactionRecord) domain.Notification {
		return domain.NewAllowanceNotification(rec.UserID, rec.Amount, sub.Tier)
	})
}

// credit runs an idempotent credit and notifies the user after commit.
func (s *LedgerServiceImpl) credit(
	ctx context.Context,
	op string,
	userID string,
	in ledger.CreditInput,
	notification func(rec *domain.TransactionRecord) domain.Notification,
) (*ports.CreditResult, error) {
	if userID == "" {
		return nil, apperror.Validation("user_id is required")
	}

	key := in.IdempotencyKey
	if key != "" {
		if rec := s.guard.Cached(ctx, key); rec != nil {
			return &ports.CreditResult{Record: rec, Replayed: true}, nil
		}
		release, err := s.guard.Claim(ctx, key)
		if err != nil {
			return s.replay(ctx, key, err)
		}
		defer release()
	}

	res, err := s.transact(ctx, op, userID, key, func(state domain.BalanceState) (ledger.Result, error) {
		return s.engine.Credit(state, in)
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		return s.replay(ctx, key, err)
	}
	if err != nil {
		return nil, toAppError(err)
	}

	rec := res.Record()
	if key != "" {
		s.guard.Remember(ctx, rec)
	}
	metrics.RecordCoins(string(domain.DirectionCredit), string(rec.Source), rec.Amount)
	s.notifier.Notify(ctx, notification(rec))

	s.log.Info().
		Str("user_id", userID).
		Str("tx_id", rec.ID.String()).
		Str("reason", rec.Reason.String()).
		Int64("amount", rec.Amount).
		Int64("balance_after", rec.BalanceAfter).
		Msg("coins credited")

	return &ports.CreditResult{Record: rec}, nil
}

// replay answers a duplicate credit with the original record. A duplicate
// whose original is still in flight surfaces as "already processed".
func (s *LedgerServiceImpl) replay(ctx context.Context, key string, cause error) (*ports.CreditResult, error) {
	rec, err := s.guard.Replay(ctx, key)
	if err != nil {
		return nil, toAppError(err)
	}
	if rec == nil {
		return nil, apperror.ErrAlreadyProcessed().WithErr(cause)
	}
	s.log.Debug().Str("key", key).Str("tx_id", rec.ID.String()).Msg("idempotent credit replayed")
	return &ports.CreditResult{Record: rec, Replayed: true}, nil
}

// Spend debits coins soonest-to-expire first. Batches that already expired
// are swept in the same transaction first so they can never be spent.
func (s *LedgerServiceImpl) Spend(ctx context.Context, req ports.SpendRequest) (*domain.TransactionRecord, error) {
	if req.UserID == "" {
		return nil, apperror.Validation("user_id is required")
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount().WithErr(domain.ErrInvalidAmount)
	}

	var expired int64
	res, err := s.transact(ctx, "spend", req.UserID, "", func(state domain.BalanceState) (ledger.Result, error) {
		now := s.engine.Now()
		sw := s.engine.Sweep(state, now)
		expired = sw.ExpiredAmount
		swept := sw.Result.Then(ledger.Prune(sw.State, now))

		debit, err := s.engine.Debit(swept.State, req.Amount, domain.Reason{Kind: domain.ReasonSpend, Detail: req.Item})
		if err != nil {
			return ledger.Result{}, err
		}
		return swept.Then(debit), nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			s.log.Info().Err(err).Str("user_id", req.UserID).Int64("amount", req.Amount).Msg("spend rejected")
		}
		return nil, toAppError(err)
	}

	if expired > 0 {
		s.afterSweep(ctx, req.UserID, expired)
	}
	rec := res.Record()
	metrics.RecordCoins(string(domain.DirectionDebit), "", rec.Amount)

	s.log.Info().
		Str("user_id", req.UserID).
		Str("tx_id", rec.ID.String()).
		Str("item", req.Item).
		Int64("amount", rec.Amount).
		Int("batches", len(rec.Consumed)).
		Int64("balance_after", rec.BalanceAfter).
		Msg("coins spent")

	return rec, nil
}

// SweepUser removes the user's expired batches and prunes exhausted ones.
// Sweeping a user with nothing expired persists nothing.
func (s *LedgerServiceImpl) SweepUser(ctx context.Context, userID string, now time.Time) (*ports.SweepOutcome, error) {
	out := &ports.SweepOutcome{}
	res, err := s.transact(ctx, "sweep", userID, "", func(state domain.BalanceState) (ledger.Result, error) {
		sw := s.engine.Sweep(state, now)
		pruned := ledger.Prune(sw.State, now)
		out.ExpiredAmount = sw.ExpiredAmount
		out.PrunedBatches = len(pruned.Changes.Deleted)
		return sw.Result.Then(pruned), nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	out.Record = res.Record()
	if out.ExpiredAmount > 0 {
		s.afterSweep(ctx, userID, out.ExpiredAmount)
	}
	return out, nil
}

func (s *LedgerServiceImpl) afterSweep(ctx context.Context, userID string, amount int64) {
	metrics.RecordCoins("expired", "", amount)
	s.notifier.Notify(ctx, domain.NewExpiredNotification(userID, amount))
	s.log.Info().Str("user_id", userID).Int64("amount", amount).Msg("expired coins swept")
}

// GetBalance returns the spendable balance. Coins that expired but have not
// been swept yet are left out.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, userID string) (*ports.BalanceView, error) {
	state, err := s.balances.Get(ctx, userID)
	if err != nil {
		return nil, toAppError(err)
	}
	if state == nil {
		empty := domain.NewBalanceState(userID)
		state = &empty
	}

	now := s.engine.Now()
	active := state.Spendable(now)
	ledger.SortForConsumption(active)

	view := &ports.BalanceView{
		UserID:      userID,
		Batches:     active,
		LastUpdated: state.LastUpdated,
	}
	for _, b := range active {
		view.TotalBalance += b.RemainingAmount
	}
	if w, ok := ledger.ExpiringWithin(*state, now, s.window); ok {
		view.ExpiringSoon = &w
	}
	return view, nil
}

// ListTransactions returns one page of history, newest first, and the cursor
// of the next page (nil on the last page).
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.TransactionRecord, *ports.TransactionCursor, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	params.Limit = limit + 1

	records, err := s.txRepo.ListByUser(ctx, params)
	if err != nil {
		return nil, nil, toAppError(err)
	}
	if len(records) <= limit {
		return records, nil, nil
	}

	records = records[:limit]
	last := records[limit-1]
	return records, &ports.TransactionCursor{Timestamp: last.Timestamp, ID: last.ID}, nil
}

// mutation computes the next state from the freshly loaded one. It must be
// pure: it may run several times when the write conflicts.
type mutation func(state domain.BalanceState) (ledger.Result, error)

// transact runs fn in its own DB transaction and persists the result,
// retrying with exponential backoff while the write conflicts.
func (s *LedgerServiceImpl) transact(ctx context.Context, op, userID, key string, fn mutation) (ledger.Result, error) {
	start := time.Now()
	delay := s.cfg.RetryBaseDelay

	var (
		res ledger.Result
		err error
	)
	for attempt := 1; ; attempt++ {
		res, err = s.attempt(ctx, userID, key, fn)
		if err == nil || !domain.IsRetryable(err) || attempt >= s.cfg.MaxRetries {
			break
		}

		metrics.RecordRetry(op)
		s.log.Debug().Err(err).Str("op", op).Str("user_id", userID).Int("attempt", attempt).Msg("write conflict, retrying")

		if serr := s.sleep(ctx, jitter(delay)); serr != nil {
			err = fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, serr)
			break
		}
		delay = min(delay*2, maxRetryDelay)
	}

	metrics.RecordOperation(op, resultLabel(err), time.Since(start).Seconds())
	if errors.Is(err, domain.ErrStorageUnavailable) {
		s.log.Error().Err(err).Str("op", op).Str("user_id", userID).Msg("ledger storage unavailable")
	}
	return res, err
}

// jitter returns a wait in [d/2, d]. Non-positive delays retry immediately.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + rand.N(d/2+1)
}

func (s *LedgerServiceImpl) attempt(ctx context.Context, userID, key string, fn mutation) (ledger.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return ledger.Result{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	state, err := s.balances.Load(ctx, tx, userID)
	if err != nil {
		return ledger.Result{}, err
	}

	res, err := fn(state)
	if err != nil {
		return ledger.Result{}, err
	}
	if !res.Changed() {
		return res, nil
	}

	if key != "" {
		rec := res.Record()
		if err := s.guard.CheckAndReserve(ctx, tx, userID, key, rec.ID, rec.Timestamp); err != nil {
			return ledger.Result{}, err
		}
	}
	if err := s.persist(ctx, tx, userID, res); err != nil {
		return ledger.Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Result{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// persist writes the header first; batch rows reference it.
func (s *LedgerServiceImpl) persist(ctx context.Context, tx pgx.Tx, userID string, res ledger.Result) error {
	if err := s.balances.Save(ctx, tx, res.State); err != nil {
		return err
	}
	if len(res.Changes.Inserted) > 0 {
		if err := s.batches.Insert(ctx, tx, userID, res.Changes.Inserted); err != nil {
			return err
		}
	}
	if len(res.Changes.Updated) > 0 {
		if err := s.batches.UpdateRemaining(ctx, tx, res.Changes.Updated); err != nil {
			return err
		}
	}
	if len(res.Changes.Deleted) > 0 {
		if err := s.batches.Delete(ctx, tx, userID, res.Changes.Deleted); err != nil {
			return err
		}
	}
	for i := range res.Records {
		if err := s.txRepo.Record(ctx, tx, &res.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
