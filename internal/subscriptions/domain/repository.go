package domain

import (
	"context"
	"time"
)

// SubscriptionRepository reads the subscription ledger.
type SubscriptionRepository interface {
	// FindActiveEndingOn returns active subscriptions whose current period
	// ends on the given calendar date (date equality, not a range).
	FindActiveEndingOn(ctx context.Context, date time.Time) ([]*Subscription, error)

	// FindExpiringOn returns active subscriptions set to cancel at period end
	// whose current period ends on the given date.
	FindExpiringOn(ctx context.Context, date time.Time) ([]*Subscription, error)

	// FindTrialsEndingOn returns trialing subscriptions whose trial ends on
	// the given date.
	FindTrialsEndingOn(ctx context.Context, date time.Time) ([]*Subscription, error)
}
