// Package workers runs the subscription reminder job on a schedule.
package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/blisterpost/blisterpost/internal/subscriptions/application"
)

// DefaultReminderInterval is the default interval between reminder cycles.
const DefaultReminderInterval = 24 * time.Hour

// ReminderWorkerConfig configures the reminder worker.
type ReminderWorkerConfig struct {
	Interval time.Duration
}

// DefaultReminderWorkerConfig returns the default configuration.
func DefaultReminderWorkerConfig() ReminderWorkerConfig {
	return ReminderWorkerConfig{Interval: DefaultReminderInterval}
}

// ReminderWorker periodically runs the reminder service.
type ReminderWorker struct {
	service *application.ReminderService
	config  ReminderWorkerConfig
	logger  *slog.Logger
	running atomic.Bool
	stopCh  chan struct{}
}

// NewReminderWorker creates a new reminder worker.
func NewReminderWorker(service *application.ReminderService, config ReminderWorkerConfig, logger *slog.Logger) *ReminderWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultReminderInterval
	}
	return &ReminderWorker{
		service: service,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Run starts the worker and blocks until the context is cancelled or Stop() is
// called. The first cycle runs immediately.
func (w *ReminderWorker) Run(ctx context.Context) error {
	if w.service == nil {
		w.logger.Warn("reminder service not configured, worker will not start")
		return nil
	}

	w.running.Store(true)
	w.logger.Info("subscription reminder worker started", "interval", w.config.Interval)

	w.runCycle(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.running.Store(false)
			w.logger.Info("subscription reminder worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.running.Store(false)
			w.logger.Info("subscription reminder worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *ReminderWorker) Stop() {
	if w.running.Load() {
		close(w.stopCh)
	}
}

// IsRunning returns true if the worker is currently running.
func (w *ReminderWorker) IsRunning() bool {
	return w.running.Load()
}

func (w *ReminderWorker) runCycle(ctx context.Context) {
	if _, err := w.service.Run(ctx); err != nil {
		w.logger.Error("subscription reminder cycle failed", "error", err)
	}
}
