// Package workers runs the shipment reconciliation job on a schedule.
package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/blisterpost/blisterpost/internal/shipments/application"
)

// DefaultReconciliationInterval is the default interval between polling cycles.
const DefaultReconciliationInterval = 2 * time.Hour

// ReconciliationWorkerConfig configures the reconciliation worker.
type ReconciliationWorkerConfig struct {
	Interval time.Duration
}

// DefaultReconciliationWorkerConfig returns the default configuration.
func DefaultReconciliationWorkerConfig() ReconciliationWorkerConfig {
	return ReconciliationWorkerConfig{Interval: DefaultReconciliationInterval}
}

// ReconciliationWorker periodically runs the shipment reconciler.
type ReconciliationWorker struct {
	reconciler *application.Reconciler
	config     ReconciliationWorkerConfig
	logger     *slog.Logger
	running    atomic.Bool
	stopCh     chan struct{}
}

// NewReconciliationWorker creates a new reconciliation worker.
func NewReconciliationWorker(reconciler *application.Reconciler, config ReconciliationWorkerConfig, logger *slog.Logger) *ReconciliationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultReconciliationInterval
	}
	return &ReconciliationWorker{
		reconciler: reconciler,
		config:     config,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Run starts the worker and blocks until the context is cancelled or Stop() is
// called. The first cycle runs immediately.
func (w *ReconciliationWorker) Run(ctx context.Context) error {
	if w.reconciler == nil {
		w.logger.Warn("shipment reconciler not configured, worker will not start")
		return nil
	}

	w.running.Store(true)
	w.logger.Info("shipment reconciliation worker started", "interval", w.config.Interval)

	w.runCycle(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.running.Store(false)
			w.logger.Info("shipment reconciliation worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.running.Store(false)
			w.logger.Info("shipment reconciliation worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *ReconciliationWorker) Stop() {
	if w.running.Load() {
		close(w.stopCh)
	}
}

// IsRunning returns true if the worker is currently running.
func (w *ReconciliationWorker) IsRunning() bool {
	return w.running.Load()
}

func (w *ReconciliationWorker) runCycle(ctx context.Context) {
	if _, err := w.reconciler.Run(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("shipment reconciliation cycle failed", "error", err)
	}
}
