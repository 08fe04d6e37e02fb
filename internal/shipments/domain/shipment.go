// Package domain models parcel shipments and their carrier tracking state.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ShipmentStatus is the internal shipment state. Carrier status codes are
// mapped into this set before anything else looks at them.
type ShipmentStatus string

const (
	ShipmentLabelCreated   ShipmentStatus = "label_created"
	ShipmentPickedUp       ShipmentStatus = "picked_up"
	ShipmentInTransit      ShipmentStatus = "in_transit"
	ShipmentOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentDelivered      ShipmentStatus = "delivered"
	ShipmentFailed         ShipmentStatus = "failed"
	ShipmentReturned       ShipmentStatus = "returned"
)

// IsTerminal reports whether a shipment in this status is ever polled again.
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentDelivered || s == ShipmentFailed || s == ShipmentReturned
}

// TrackingEvent is one scan point from the carrier, newest first in
// Shipment.Events.
type TrackingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
	StatusCode  string    `json:"status_code"`
	Description string    `json:"description,omitempty"`
}

// Shipment is one parcel sent for an order. OrderNumber and UserID are
// denormalized from the order for reconciliation logging and notifications.
type Shipment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	OrderNumber    string
	UserID         uuid.UUID
	TrackingNumber string
	Carrier        string
	Status         ShipmentStatus
	Events         []TrackingEvent

	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time

	// NotFoundCount counts consecutive polls where the carrier did not know
	// the tracking number. Shipments over the configured limit are dropped
	// from polling.
	NotFoundCount int
	LastCheckedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusTransition describes the outcome of applying a tracking result.
type StatusTransition struct {
	From    ShipmentStatus
	To      ShipmentStatus
	Changed bool
}

// ApplyTracking overwrites the shipment's tracking state with the latest
// carrier result and reports whether the status changed. A successful poll
// resets the not-found counter. A result without an estimated-delivery date
// keeps the stored one; the carrier stops reporting the estimate on some
// shipments once they are moving.
func (s *Shipment) ApplyTracking(result *TrackingResult, now time.Time) StatusTransition {
	transition := StatusTransition{From: s.Status, To: result.Status, Changed: s.Status != result.Status}

	s.Status = result.Status
	s.Events = result.Events
	if result.EstimatedDelivery != nil {
		s.EstimatedDelivery = result.EstimatedDelivery
	}
	s.NotFoundCount = 0
	s.LastCheckedAt = &now
	s.UpdatedAt = now

	if result.Status == ShipmentDelivered && s.ActualDelivery == nil {
		s.ActualDelivery = result.DeliveredAt(now)
	}

	return transition
}

// RecordNotFound bumps the not-found counter after a poll the carrier
// answered with "unknown tracking number".
func (s *Shipment) RecordNotFound(now time.Time) {
	s.NotFoundCount++
	s.LastCheckedAt = &now
	s.UpdatedAt = now
}
