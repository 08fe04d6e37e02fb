package domain

import (
	"context"

	"github.com/google/uuid"
)

// ShipmentRepository persists shipments and their tracking state.
type ShipmentRepository interface {
	// FindByID returns a shipment, or nil when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Shipment, error)

	// FindByTrackingNumber returns the shipment carrying the tracking number,
	// or nil when absent.
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*Shipment, error)

	// FindReconcilable returns shipments that should be polled: non-terminal
	// status and fewer than notFoundLimit consecutive not-found polls,
	// oldest-checked first, at most limit rows.
	FindReconcilable(ctx context.Context, notFoundLimit, limit int) ([]*Shipment, error)

	// Update persists tracking state mutated by ApplyTracking or RecordNotFound.
	Update(ctx context.Context, shipment *Shipment) error
}
