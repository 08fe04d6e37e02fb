// Package notifications turns workflow side effects into outbox-backed
// notification intents. Rendering and sending happen in a separate consumer;
// this package only guarantees the intent is durably enqueued.
package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/blisterpost/blisterpost/internal/shared/domain"
)

// IntentType tags what the dispatcher should render and send.
type IntentType string

const (
	IntentOrderConfirmation    IntentType = "order_confirmation"
	IntentDeliveryConfirmation IntentType = "delivery_confirmation"
	IntentShippingNotification IntentType = "shipping_notification"
	IntentSubscriptionEnding   IntentType = "subscription_ending"
	IntentTrialEnding          IntentType = "trial_ending"
)

// RoutingKeyPrefix namespaces notification intents on the event bus.
const RoutingKeyPrefix = "notifications."

// Intent is a message the external notification sender can act on without
// calling back into this service.
type Intent struct {
	Type       IntentType
	UserID     uuid.UUID
	Email      string
	EntityType string
	EntityID   uuid.UUID
	Context    map[string]string
}

// RoutingKey returns the event-bus routing key for the intent.
func (i Intent) RoutingKey() string {
	return RoutingKeyPrefix + string(i.Type)
}

// Dispatcher enqueues intents for asynchronous delivery. Implementations must
// not block on delivery success.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent Intent) error
}

// IntentRequested is the domain event wrapping an intent for the outbox.
type IntentRequested struct {
	domain.BaseEvent
	Type       IntentType        `json:"type"`
	UserID     uuid.UUID         `json:"user_id"`
	Email      string            `json:"email"`
	EntityType string            `json:"entity_type"`
	EntityID   uuid.UUID         `json:"entity_id"`
	Context    map[string]string `json:"context,omitempty"`
}

// NewIntentRequested builds the outbox event for an intent.
func NewIntentRequested(intent Intent) *IntentRequested {
	event := &IntentRequested{
		BaseEvent:  domain.NewBaseEvent(intent.EntityID, intent.EntityType, intent.RoutingKey()),
		Type:       intent.Type,
		UserID:     intent.UserID,
		Email:      intent.Email,
		EntityType: intent.EntityType,
		EntityID:   intent.EntityID,
		Context:    intent.Context,
	}
	event.SetMetadata(domain.EventMetadata{UserID: intent.UserID})
	return event
}
