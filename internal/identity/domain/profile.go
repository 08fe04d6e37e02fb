// Package domain holds the read-only user profile consumed by order
// generation. Account management itself lives outside this service.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Profile is the delivery-relevant slice of a user account.
type Profile struct {
	UserID     uuid.UUID
	Email      string
	FullName   string
	Street     string
	PostalCode string
	City       string
	Country    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProfileRepository reads user profiles.
type ProfileRepository interface {
	// FindByUserID returns the profile for a user, or nil when absent.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
}
