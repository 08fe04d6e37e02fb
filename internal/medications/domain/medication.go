// Package domain holds a user's medication list, the snapshot source for
// order line items. Medications are managed in onboarding, outside this
// service; the jobs only ever read them.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Medication is one entry of a user's medication plan. PZN is the
// Pharmazentralnummer identifying the product.
type Medication struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
	Dosage string
	PZN    string

	// Time-of-day schedule flags for the blister compartments.
	Morning bool
	Noon    bool
	Evening bool
	Night   bool

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MedicationRepository reads medication plans.
type MedicationRepository interface {
	// FindActiveByUser returns the user's medications with Active = true.
	FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]*Medication, error)
}
