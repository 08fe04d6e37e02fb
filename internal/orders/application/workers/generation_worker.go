// Package workers runs the order generation job on a schedule.
package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/blisterpost/blisterpost/internal/orders/application"
)

// DefaultGenerationInterval is the default interval between generation cycles.
// The job is idempotent, so running more often than daily only costs queries.
const DefaultGenerationInterval = 24 * time.Hour

// GenerationWorkerConfig configures the generation worker.
type GenerationWorkerConfig struct {
	Interval time.Duration
}

// DefaultGenerationWorkerConfig returns the default configuration.
func DefaultGenerationWorkerConfig() GenerationWorkerConfig {
	return GenerationWorkerConfig{Interval: DefaultGenerationInterval}
}

// GenerationWorker periodically runs the order generator.
type GenerationWorker struct {
	generator *application.Generator
	config    GenerationWorkerConfig
	logger    *slog.Logger
	running   atomic.Bool
	stopCh    chan struct{}
}

// NewGenerationWorker creates a new generation worker.
func NewGenerationWorker(generator *application.Generator, config GenerationWorkerConfig, logger *slog.Logger) *GenerationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultGenerationInterval
	}
	return &GenerationWorker{
		generator: generator,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Run starts the worker and blocks until the context is cancelled or Stop() is
// called. The first cycle runs immediately.
func (w *GenerationWorker) Run(ctx context.Context) error {
	if w.generator == nil {
		w.logger.Warn("order generator not configured, worker will not start")
		return nil
	}

	w.running.Store(true)
	w.logger.Info("order generation worker started", "interval", w.config.Interval)

	w.runCycle(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.running.Store(false)
			w.logger.Info("order generation worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.running.Store(false)
			w.logger.Info("order generation worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *GenerationWorker) Stop() {
	if w.running.Load() {
		close(w.stopCh)
	}
}

// IsRunning returns true if the worker is currently running.
func (w *GenerationWorker) IsRunning() bool {
	return w.running.Load()
}

func (w *GenerationWorker) runCycle(ctx context.Context) {
	if _, err := w.generator.Run(ctx); err != nil {
		w.logger.Error("order generation cycle failed", "error", err)
	}
}
