package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	shareddomain "github.com/blisterpost/blisterpost/internal/shared/domain"
)

// OrderRepository persists orders and their line items.
type OrderRepository interface {
	// Create stores the order and its line items atomically and enqueues the
	// given events alongside them, so an intent never outlives a rolled-back
	// order. Returns ErrDuplicatePeriod when an order for (user, period start)
	// exists. An event that cannot be enqueued does not fail the order.
	Create(ctx context.Context, order *Order, events ...shareddomain.DomainEvent) error

	// ExistsForPeriod reports whether the user already has an order whose
	// period starts on the given date.
	ExistsForPeriod(ctx context.Context, userID uuid.UUID, periodStart time.Time) (bool, error)

	// MarkDelivered sets the order status to delivered with the given
	// delivery timestamp.
	MarkDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error
}
