// Package application contains the shipment tracking reconciliation job.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blisterpost/blisterpost/internal/notifications"
	ordersdomain "github.com/blisterpost/blisterpost/internal/orders/domain"
	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/locking"
	"github.com/blisterpost/blisterpost/internal/shipments/domain"
	"github.com/blisterpost/blisterpost/pkg/observability"
)

// ReconcilerConfig configures one reconciliation run.
type ReconcilerConfig struct {
	// BatchSize is the maximum number of shipments loaded per run.
	BatchSize int

	// MaxConcurrent bounds parallel carrier calls.
	MaxConcurrent int

	// NotFoundLimit drops shipments from polling after this many consecutive
	// polls the carrier answered with "unknown tracking number".
	NotFoundLimit int

	// LockTTL is how long a per-shipment lock is held at most.
	LockTTL time.Duration
}

// DefaultReconcilerConfig returns the default configuration.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		BatchSize:     200,
		MaxConcurrent: 4,
		NotFoundLimit: 10,
		LockTTL:       5 * time.Minute,
	}
}

// ReconcilerResult summarizes one reconciliation run.
type ReconcilerResult struct {
	Polled      int
	Updated     int
	Transitions int
	NotFound    int
	Failed      int
	Skipped     int
}

// Reconciler polls the carrier for every open shipment and applies the result.
// Notifications fire only on a status transition, so re-polling an unchanged
// shipment is silent.
type Reconciler struct {
	shipments  domain.ShipmentRepository
	orders     ordersdomain.OrderRepository
	provider   domain.TrackingProvider
	locker     locking.Locker
	dispatcher notifications.Dispatcher
	config     ReconcilerConfig
	logger     *slog.Logger
	metrics    observability.Metrics
}

// NewReconciler creates a reconciler. A nil locker disables cross-instance
// locking; a nil dispatcher disables notifications.
func NewReconciler(
	shipments domain.ShipmentRepository,
	orders ordersdomain.OrderRepository,
	provider domain.TrackingProvider,
	locker locking.Locker,
	dispatcher notifications.Dispatcher,
	config ReconcilerConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Reconciler {
	if locker == nil {
		locker = locking.NoopLocker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	if config.NotFoundLimit <= 0 {
		config.NotFoundLimit = 10
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 5 * time.Minute
	}
	return &Reconciler{
		shipments:  shipments,
		orders:     orders,
		provider:   provider,
		locker:     locker,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run reconciles all open shipments. Shipments are processed concurrently up
// to MaxConcurrent; one failing shipment never aborts the run.
func (r *Reconciler) Run(ctx context.Context) (ReconcilerResult, error) {
	started := time.Now()

	shipments, err := r.shipments.FindReconcilable(ctx, r.config.NotFoundLimit, r.config.BatchSize)
	if err != nil {
		return ReconcilerResult{}, fmt.Errorf("failed to load reconcilable shipments: %w", err)
	}

	var (
		mu     sync.Mutex
		result ReconcilerResult
		wg     sync.WaitGroup
		sem    = make(chan struct{}, r.config.MaxConcurrent)
	)

	for _, shipment := range shipments {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(shipment *domain.Shipment) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := r.reconcileOne(ctx, shipment)

			mu.Lock()
			defer mu.Unlock()
			result.Polled++
			switch outcome.kind {
			case outcomeUpdated:
				result.Updated++
				if outcome.transition.Changed {
					result.Transitions++
				}
			case outcomeNotFound:
				result.NotFound++
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				result.Failed++
			}
		}(shipment)
	}
	wg.Wait()

	r.metrics.Counter("shipments.reconciliation.polled", int64(result.Polled))
	r.metrics.Counter("shipments.reconciliation.transitions", int64(result.Transitions))
	r.metrics.Counter("shipments.reconciliation.failed", int64(result.Failed))
	r.metrics.Timing("shipments.reconciliation.duration", time.Since(started))

	r.logger.Info("shipment reconciliation run complete",
		slog.Int("polled", result.Polled),
		slog.Int("updated", result.Updated),
		slog.Int("transitions", result.Transitions),
		slog.Int("not_found", result.NotFound),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))

	return result, ctx.Err()
}

type outcomeKind int

const (
	outcomeUpdated outcomeKind = iota
	outcomeNotFound
	outcomeSkipped
	outcomeFailed
)

type reconcileOutcome struct {
	kind       outcomeKind
	transition domain.StatusTransition
}

func (r *Reconciler) reconcileOne(ctx context.Context, shipment *domain.Shipment) (outcome reconcileOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while reconciling shipment",
				slog.String("shipment_id", shipment.ID.String()),
				slog.Any("panic", rec))
			outcome = reconcileOutcome{kind: outcomeFailed}
		}
	}()

	release, acquired, err := r.locker.Acquire(ctx, "shipment:"+shipment.ID.String(), r.config.LockTTL)
	if err != nil {
		r.logger.Error("failed to acquire shipment lock",
			slog.String("shipment_id", shipment.ID.String()),
			slog.String("error", err.Error()))
		return reconcileOutcome{kind: outcomeFailed}
	}
	if !acquired {
		// Another instance holds the shipment; it will be picked up next run.
		return reconcileOutcome{kind: outcomeSkipped}
	}
	defer release(ctx)

	// The listing may be stale by the time the lock is held. Re-read so the
	// read-modify-write runs on current state, and skip shipments another
	// instance already finished.
	shipment, err = r.shipments.FindByID(ctx, shipment.ID)
	if err != nil {
		r.logger.Error("failed to reload shipment under lock",
			slog.String("error", err.Error()))
		return reconcileOutcome{kind: outcomeFailed}
	}
	if shipment == nil || shipment.Status.IsTerminal() {
		return reconcileOutcome{kind: outcomeSkipped}
	}

	result, err := r.provider.Track(ctx, shipment.TrackingNumber)
	if err != nil {
		r.logger.Error("carrier poll failed",
			slog.String("shipment_id", shipment.ID.String()),
			slog.String("tracking_number", shipment.TrackingNumber),
			slog.String("error", err.Error()))
		return reconcileOutcome{kind: outcomeFailed}
	}

	now := time.Now().UTC()
	if result == nil {
		shipment.RecordNotFound(now)
		if shipment.NotFoundCount >= r.config.NotFoundLimit {
			r.logger.Warn("shipment reached not-found limit, dropping from polling",
				slog.String("shipment_id", shipment.ID.String()),
				slog.String("tracking_number", shipment.TrackingNumber),
				slog.Int("not_found_count", shipment.NotFoundCount))
		}
		if err := r.shipments.Update(ctx, shipment); err != nil {
			r.logger.Error("failed to persist not-found poll",
				slog.String("shipment_id", shipment.ID.String()),
				slog.String("error", err.Error()))
			return reconcileOutcome{kind: outcomeFailed}
		}
		return reconcileOutcome{kind: outcomeNotFound}
	}

	transition := shipment.ApplyTracking(result, now)
	if err := r.shipments.Update(ctx, shipment); err != nil {
		r.logger.Error("failed to persist tracking update",
			slog.String("shipment_id", shipment.ID.String()),
			slog.String("error", err.Error()))
		return reconcileOutcome{kind: outcomeFailed}
	}

	if transition.Changed {
		r.logger.Info("shipment status changed",
			slog.String("shipment_id", shipment.ID.String()),
			slog.String("order_number", shipment.OrderNumber),
			slog.String("from", string(transition.From)),
			slog.String("to", string(transition.To)))
		r.handleTransition(ctx, shipment, transition)
	}

	return reconcileOutcome{kind: outcomeUpdated, transition: transition}
}

// handleTransition runs the side effects of a status change. The tracking
// update is already committed; failures here are logged only.
func (r *Reconciler) handleTransition(ctx context.Context, shipment *domain.Shipment, transition domain.StatusTransition) {
	if transition.To == domain.ShipmentDelivered {
		deliveredAt := time.Now().UTC()
		if shipment.ActualDelivery != nil {
			deliveredAt = *shipment.ActualDelivery
		}
		if err := r.orders.MarkDelivered(ctx, shipment.OrderID, deliveredAt); err != nil {
			r.logger.Error("failed to mark order delivered",
				slog.String("order_id", shipment.OrderID.String()),
				slog.String("error", err.Error()))
		}
		r.dispatch(ctx, shipment, notifications.IntentDeliveryConfirmation)
		return
	}

	// First movement after label creation means the parcel is on its way.
	if transition.From == domain.ShipmentLabelCreated && !transition.To.IsTerminal() {
		r.dispatch(ctx, shipment, notifications.IntentShippingNotification)
	}
}

func (r *Reconciler) dispatch(ctx context.Context, shipment *domain.Shipment, intentType notifications.IntentType) {
	if r.dispatcher == nil {
		return
	}
	err := r.dispatcher.Dispatch(ctx, notifications.Intent{
		Type:       intentType,
		UserID:     shipment.UserID,
		EntityType: "shipment",
		EntityID:   shipment.ID,
		Context: map[string]string{
			"order_number":    shipment.OrderNumber,
			"tracking_number": shipment.TrackingNumber,
			"carrier":         shipment.Carrier,
			"status":          string(shipment.Status),
		},
	})
	if err != nil {
		r.logger.Error("failed to enqueue shipment notification",
			slog.String("shipment_id", shipment.ID.String()),
			slog.String("intent_type", string(intentType)),
			slog.String("error", err.Error()))
	}
}
