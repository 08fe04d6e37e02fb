package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/outbox"
)

// OutboxDispatcher persists intents to the transactional outbox. The outbox
// processor handles publishing, retries and dead-lettering.
type OutboxDispatcher struct {
	repo   outbox.Repository
	logger *slog.Logger
}

// NewOutboxDispatcher creates a dispatcher backed by the outbox.
func NewOutboxDispatcher(repo outbox.Repository, logger *slog.Logger) *OutboxDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxDispatcher{repo: repo, logger: logger}
}

// Dispatch enqueues one intent.
func (d *OutboxDispatcher) Dispatch(ctx context.Context, intent Intent) error {
	msg, err := outbox.NewMessage(NewIntentRequested(intent))
	if err != nil {
		return fmt.Errorf("failed to encode %s intent: %w", intent.Type, err)
	}

	if err := d.repo.Save(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue %s intent: %w", intent.Type, err)
	}

	d.logger.Debug("notification intent enqueued",
		"type", string(intent.Type),
		"user_id", intent.UserID,
		"entity_type", intent.EntityType,
		"entity_id", intent.EntityID,
	)
	return nil
}
