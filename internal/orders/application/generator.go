// Package application contains the order generation job. It is the write path
// of the orders context: everything else it touches is read-only input.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	identitydomain "github.com/blisterpost/blisterpost/internal/identity/domain"
	medsdomain "github.com/blisterpost/blisterpost/internal/medications/domain"
	"github.com/blisterpost/blisterpost/internal/notifications"
	"github.com/blisterpost/blisterpost/internal/orders/domain"
	"github.com/blisterpost/blisterpost/internal/shared/clock"
	subsdomain "github.com/blisterpost/blisterpost/internal/subscriptions/domain"
	"github.com/blisterpost/blisterpost/pkg/observability"
)

// GeneratorResult summarizes one generation run.
type GeneratorResult struct {
	Candidates int
	Created    int
	Skipped    int
	Failed     int
}

// Generator creates the next blister order for every active subscription whose
// current period ends tomorrow. The run is idempotent: re-running for the same
// date creates nothing new.
type Generator struct {
	subscriptions subsdomain.SubscriptionRepository
	orders        domain.OrderRepository
	profiles      identitydomain.ProfileRepository
	medications   medsdomain.MedicationRepository
	clock         clock.Clock
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewGenerator creates an order generator. A nil clk uses the system clock.
func NewGenerator(
	subscriptions subsdomain.SubscriptionRepository,
	orders domain.OrderRepository,
	profiles identitydomain.ProfileRepository,
	medications medsdomain.MedicationRepository,
	clk clock.Clock,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Generator {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Generator{
		subscriptions: subscriptions,
		orders:        orders,
		profiles:      profiles,
		medications:   medications,
		clock:         clk,
		logger:        logger,
		metrics:       metrics,
	}
}

// Run generates orders for all subscriptions rolling over tomorrow. One bad
// subscription never aborts the run; its error is logged and counted and the
// loop moves on.
func (g *Generator) Run(ctx context.Context) (GeneratorResult, error) {
	started := g.clock.Now()
	tomorrow := clock.DateOf(started).AddDate(0, 0, 1)

	subs, err := g.subscriptions.FindActiveEndingOn(ctx, tomorrow)
	if err != nil {
		return GeneratorResult{}, fmt.Errorf("failed to load subscriptions ending on %s: %w", tomorrow.Format("2006-01-02"), err)
	}

	result := GeneratorResult{Candidates: len(subs)}
	for _, sub := range subs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		created, err := g.generateFor(ctx, sub, tomorrow)
		switch {
		case err != nil:
			result.Failed++
			g.logger.Error("order generation failed for subscription",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("user_id", sub.UserID.String()),
				slog.String("error", err.Error()))
		case created:
			result.Created++
		default:
			result.Skipped++
		}
	}

	g.metrics.Counter("orders.generation.created", int64(result.Created))
	g.metrics.Counter("orders.generation.skipped", int64(result.Skipped))
	g.metrics.Counter("orders.generation.failed", int64(result.Failed))
	g.metrics.Timing("orders.generation.duration", time.Since(started))

	g.logger.Info("order generation run complete",
		slog.String("period_start", tomorrow.Format("2006-01-02")),
		slog.Int("candidates", result.Candidates),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))

	return result, nil
}

func (g *Generator) generateFor(ctx context.Context, sub *subsdomain.Subscription, periodStart time.Time) (bool, error) {
	if !sub.Plan.IntervalMatchesCadence() {
		g.logger.Warn("plan interval disagrees with advertised cadence",
			slog.String("plan", sub.Plan.Slug),
			slog.String("cadence", string(sub.Plan.Cadence)),
			slog.Int("interval_days", sub.Plan.IntervalDays))
	}

	exists, err := g.orders.ExistsForPeriod(ctx, sub.UserID, periodStart)
	if err != nil {
		return false, fmt.Errorf("failed to check existing order: %w", err)
	}
	if exists {
		return false, nil
	}

	profile, err := g.profiles.FindByUserID(ctx, sub.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return false, fmt.Errorf("no profile for user %s", sub.UserID)
	}

	meds, err := g.medications.FindActiveByUser(ctx, sub.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to load medications: %w", err)
	}
	if len(meds) == 0 {
		g.logger.Warn("generating order with no active medications",
			slog.String("user_id", sub.UserID.String()))
	}

	periodEnd := periodStart.AddDate(0, 0, sub.Plan.IntervalDays)
	order := domain.NewOrder(sub.UserID, sub.ID, periodStart, periodEnd, domain.ShippingAddress{
		Name:       profile.FullName,
		Street:     profile.Street,
		PostalCode: profile.PostalCode,
		City:       profile.City,
		Country:    profile.Country,
	}, meds)

	// The confirmation intent travels in the same transaction as the order,
	// so a rolled-back order leaves no orphaned notification behind.
	confirmation := notifications.NewIntentRequested(notifications.Intent{
		Type:       notifications.IntentOrderConfirmation,
		UserID:     order.UserID,
		Email:      profile.Email,
		EntityType: "order",
		EntityID:   order.ID,
		Context: map[string]string{
			"order_number": order.Number,
			"period_start": order.PeriodStart.Format("2006-01-02"),
			"period_end":   order.PeriodEnd.Format("2006-01-02"),
		},
	})

	if err := g.orders.Create(ctx, order, confirmation); err != nil {
		if errors.Is(err, domain.ErrDuplicatePeriod) {
			// A concurrent run won the race; this subscription is covered.
			return false, nil
		}
		return false, fmt.Errorf("failed to create order: %w", err)
	}

	g.logger.Info("order created",
		slog.String("order_id", order.ID.String()),
		slog.String("order_number", order.Number),
		slog.String("user_id", sub.UserID.String()),
		slog.Int("items", len(order.Items)))

	return true, nil
}
