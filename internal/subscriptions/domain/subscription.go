// Package domain holds the subscription ledger. Subscriptions are created and
// advanced by billing, which is outside this service; everything here is
// read-only input to the scheduled jobs.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the current billing state.
type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionPaused   SubscriptionStatus = "paused"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// PlanCadence is the marketed billing rhythm of a plan. The period arithmetic
// itself always uses IntervalDays; cadence exists so a mismatch between the
// two can be detected and surfaced.
type PlanCadence string

const (
	CadenceWeekly    PlanCadence = "weekly"
	CadenceMonthly   PlanCadence = "monthly"
	CadenceQuarterly PlanCadence = "quarterly"
)

// Plan describes a subscription tier.
type Plan struct {
	ID           uuid.UUID
	Slug         string
	Name         string
	Cadence      PlanCadence
	IntervalDays int
	TrialDays    int
	Active       bool
}

// cadenceDays maps each cadence to the period length it advertises.
var cadenceDays = map[PlanCadence]int{
	CadenceWeekly:    7,
	CadenceMonthly:   28,
	CadenceQuarterly: 91,
}

// IntervalMatchesCadence reports whether IntervalDays agrees with the
// advertised cadence. Production data records the quarterly tier with a
// 28-day interval, so quarterly subscribers receive monthly-length orders;
// the generator warns when this returns false.
func (p Plan) IntervalMatchesCadence() bool {
	expected, ok := cadenceDays[p.Cadence]
	if !ok {
		return true
	}
	return p.IntervalDays == expected
}

// Subscription represents a user's recurring blister subscription.
type Subscription struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Plan               Plan
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	TrialEnd           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsActive reports whether the subscription generates orders.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}
