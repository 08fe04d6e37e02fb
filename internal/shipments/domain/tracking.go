package domain

import (
	"context"
	"time"
)

// TrackingResult is the carrier's current view of one shipment, already mapped
// to internal statuses. Events are sorted newest first.
type TrackingResult struct {
	TrackingNumber    string
	Status            ShipmentStatus
	Events            []TrackingEvent
	EstimatedDelivery *time.Time
}

// DeliveredAt returns the delivery timestamp for a delivered result: the
// newest event's timestamp, or the fallback when the carrier sent no events.
func (r *TrackingResult) DeliveredAt(fallback time.Time) *time.Time {
	if len(r.Events) > 0 {
		at := r.Events[0].Timestamp
		return &at
	}
	return &fallback
}

// TrackingProvider queries a carrier API for shipment state.
//
// A (nil, nil) return means the carrier does not know the tracking number,
// which is normal for freshly created labels. A non-nil error means the poll
// itself failed and says nothing about the shipment.
type TrackingProvider interface {
	Track(ctx context.Context, trackingNumber string) (*TrackingResult, error)
}
