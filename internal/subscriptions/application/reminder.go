// Package application contains the subscription reminder job.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	identitydomain "github.com/blisterpost/blisterpost/internal/identity/domain"
	"github.com/blisterpost/blisterpost/internal/notifications"
	"github.com/blisterpost/blisterpost/internal/shared/clock"
	"github.com/blisterpost/blisterpost/internal/subscriptions/domain"
	"github.com/blisterpost/blisterpost/pkg/observability"
)

// DefaultReminderLeadDays is how many days before the end date reminders fire.
const DefaultReminderLeadDays = 3

// ReminderResult summarizes one reminder run.
type ReminderResult struct {
	SubscriptionEnding int
	TrialEnding        int
	Failed             int
}

// ReminderService notifies users whose subscription is about to expire or
// whose trial is about to end. Each reminder fires once because the lookup is
// date equality on the lead date, not a range.
type ReminderService struct {
	subscriptions domain.SubscriptionRepository
	profiles      identitydomain.ProfileRepository
	dispatcher    notifications.Dispatcher
	leadDays      int
	clock         clock.Clock
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewReminderService creates a reminder service.
func NewReminderService(
	subscriptions domain.SubscriptionRepository,
	profiles identitydomain.ProfileRepository,
	dispatcher notifications.Dispatcher,
	leadDays int,
	clk clock.Clock,
	logger *slog.Logger,
	metrics observability.Metrics,
) *ReminderService {
	if leadDays <= 0 {
		leadDays = DefaultReminderLeadDays
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &ReminderService{
		subscriptions: subscriptions,
		profiles:      profiles,
		dispatcher:    dispatcher,
		leadDays:      leadDays,
		clock:         clk,
		logger:        logger,
		metrics:       metrics,
	}
}

// Run sends reminders for subscriptions expiring and trials ending leadDays
// from today.
func (s *ReminderService) Run(ctx context.Context) (ReminderResult, error) {
	target := clock.DateOf(s.clock.Now()).AddDate(0, 0, s.leadDays)
	result := ReminderResult{}

	expiring, err := s.subscriptions.FindExpiringOn(ctx, target)
	if err != nil {
		return result, fmt.Errorf("failed to load expiring subscriptions: %w", err)
	}
	for _, sub := range expiring {
		if s.remind(ctx, sub, notifications.IntentSubscriptionEnding, sub.CurrentPeriodEnd) {
			result.SubscriptionEnding++
		} else {
			result.Failed++
		}
	}

	trials, err := s.subscriptions.FindTrialsEndingOn(ctx, target)
	if err != nil {
		return result, fmt.Errorf("failed to load ending trials: %w", err)
	}
	for _, sub := range trials {
		endsAt := sub.CurrentPeriodEnd
		if sub.TrialEnd != nil {
			endsAt = *sub.TrialEnd
		}
		if s.remind(ctx, sub, notifications.IntentTrialEnding, endsAt) {
			result.TrialEnding++
		} else {
			result.Failed++
		}
	}

	s.metrics.Counter("subscriptions.reminders.sent", int64(result.SubscriptionEnding+result.TrialEnding))
	s.metrics.Counter("subscriptions.reminders.failed", int64(result.Failed))

	s.logger.Info("subscription reminder run complete",
		slog.String("target_date", target.Format("2006-01-02")),
		slog.Int("subscription_ending", result.SubscriptionEnding),
		slog.Int("trial_ending", result.TrialEnding),
		slog.Int("failed", result.Failed))

	return result, nil
}

func (s *ReminderService) remind(ctx context.Context, sub *domain.Subscription, intentType notifications.IntentType, endsAt time.Time) bool {
	profile, err := s.profiles.FindByUserID(ctx, sub.UserID)
	if err != nil || profile == nil {
		s.logger.Error("cannot resolve profile for reminder",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("user_id", sub.UserID.String()))
		return false
	}

	err = s.dispatcher.Dispatch(ctx, notifications.Intent{
		Type:       intentType,
		UserID:     sub.UserID,
		Email:      profile.Email,
		EntityType: "subscription",
		EntityID:   sub.ID,
		Context: map[string]string{
			"plan":    sub.Plan.Slug,
			"ends_at": endsAt.Format("2006-01-02"),
		},
	})
	if err != nil {
		s.logger.Error("failed to enqueue reminder",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("intent_type", string(intentType)),
			slog.String("error", err.Error()))
		return false
	}
	return true
}
