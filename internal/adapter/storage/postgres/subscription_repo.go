package postgres

import (
	"context"
	"fmt"

	"coin-ledger/internal/core/domain"
)

// SubscriptionRepo reads the subscriptions table maintained by the
// subscription service.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// ListAllowanceEligible pages through active or cancelled-but-paid
// subscriptions on a tier with a monthly allowance.
func (r *SubscriptionRepo) ListAllowanceEligible(ctx context.Context, after string, limit int) ([]domain.Subscription, error) {
	query := `SELECT user_id, tier, status, updated_at FROM subscriptions
		WHERE status IN ('active', 'cancelled') AND tier IN ('silver', 'gold') AND user_id > $1
		ORDER BY user_id LIMIT $2`

	rows, err := r.pool.Query(ctx, query, after, limit)
	if err != nil {
		return nil, classify("list subscriptions", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var (
			s            domain.Subscription
			tier, status string
		)
		if err := rows.Scan(&s.UserID, &tier, &status, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription row: %w", err)
		}
		s.Tier = domain.Tier(tier)
		s.Status = domain.SubscriptionStatus(status)
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate subscription rows", err)
	}
	return subs, nil
}
