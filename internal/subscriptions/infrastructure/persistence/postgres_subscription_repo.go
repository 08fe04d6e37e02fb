package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blisterpost/blisterpost/internal/subscriptions/domain"
)

const subscriptionColumns = `
	s.id, s.user_id, s.status, s.current_period_start, s.current_period_end,
	s.cancel_at_period_end, s.trial_end, s.created_at, s.updated_at,
	p.id, p.slug, p.name, p.cadence, p.interval_days, p.trial_days, p.active
`

// PostgresSubscriptionRepository implements SubscriptionRepository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// FindActiveEndingOn returns active subscriptions whose period ends on the given date.
func (r *PostgresSubscriptionRepository) FindActiveEndingOn(ctx context.Context, date time.Time) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.status = $1
		  AND s.current_period_end::date = $2::date
		ORDER BY s.created_at
	`
	return r.query(ctx, query, string(domain.SubscriptionActive), date)
}

// FindExpiringOn returns active subscriptions canceling at period end on the given date.
func (r *PostgresSubscriptionRepository) FindExpiringOn(ctx context.Context, date time.Time) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.status = $1
		  AND s.cancel_at_period_end
		  AND s.current_period_end::date = $2::date
		ORDER BY s.created_at
	`
	return r.query(ctx, query, string(domain.SubscriptionActive), date)
}

// FindTrialsEndingOn returns trialing subscriptions whose trial ends on the given date.
func (r *PostgresSubscriptionRepository) FindTrialsEndingOn(ctx context.Context, date time.Time) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.status = $1
		  AND s.trial_end IS NOT NULL
		  AND s.trial_end::date = $2::date
		ORDER BY s.created_at
	`
	return r.query(ctx, query, string(domain.SubscriptionTrialing), date)
}

func (r *PostgresSubscriptionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

func scanSubscriptions(rows pgx.Rows) ([]*domain.Subscription, error) {
	var subscriptions []*domain.Subscription
	for rows.Next() {
		sub := &domain.Subscription{}
		var status, cadence string
		err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&status,
			&sub.CurrentPeriodStart,
			&sub.CurrentPeriodEnd,
			&sub.CancelAtPeriodEnd,
			&sub.TrialEnd,
			&sub.CreatedAt,
			&sub.UpdatedAt,
			&sub.Plan.ID,
			&sub.Plan.Slug,
			&sub.Plan.Name,
			&cadence,
			&sub.Plan.IntervalDays,
			&sub.Plan.TrialDays,
			&sub.Plan.Active,
		)
		if err != nil {
			return nil, err
		}
		sub.Status = domain.SubscriptionStatus(status)
		sub.Plan.Cadence = domain.PlanCadence(cadence)
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, rows.Err()
}
