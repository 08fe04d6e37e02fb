package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShipmentStatus_IsTerminal(t *testing.T) {
	assert.True(t, ShipmentDelivered.IsTerminal())
	assert.True(t, ShipmentFailed.IsTerminal())
	assert.True(t, ShipmentReturned.IsTerminal())

	assert.False(t, ShipmentLabelCreated.IsTerminal())
	assert.False(t, ShipmentPickedUp.IsTerminal())
	assert.False(t, ShipmentInTransit.IsTerminal())
	assert.False(t, ShipmentOutForDelivery.IsTerminal())
}

func TestShipment_ApplyTracking_StatusChange(t *testing.T) {
	shipment := &Shipment{Status: ShipmentInTransit, NotFoundCount: 3}
	now := time.Date(2024, 6, 14, 11, 30, 0, 0, time.UTC)

	transition := shipment.ApplyTracking(&TrackingResult{
		Status: ShipmentOutForDelivery,
		Events: []TrackingEvent{
			{Timestamp: now.Add(-time.Hour), StatusCode: "out-for-delivery"},
		},
	}, now)

	assert.True(t, transition.Changed)
	assert.Equal(t, ShipmentInTransit, transition.From)
	assert.Equal(t, ShipmentOutForDelivery, transition.To)

	assert.Equal(t, ShipmentOutForDelivery, shipment.Status)
	assert.Equal(t, 0, shipment.NotFoundCount)
	require.NotNil(t, shipment.LastCheckedAt)
	assert.Equal(t, now, *shipment.LastCheckedAt)
}

func TestShipment_ApplyTracking_NoChange(t *testing.T) {
	shipment := &Shipment{Status: ShipmentInTransit}

	transition := shipment.ApplyTracking(&TrackingResult{Status: ShipmentInTransit}, time.Now())

	assert.False(t, transition.Changed)
}

func TestShipment_ApplyTracking_KeepsEstimateWhenResultHasNone(t *testing.T) {
	estimate := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	shipment := &Shipment{Status: ShipmentLabelCreated, EstimatedDelivery: &estimate}

	shipment.ApplyTracking(&TrackingResult{Status: ShipmentInTransit}, time.Now())

	require.NotNil(t, shipment.EstimatedDelivery)
	assert.Equal(t, estimate, *shipment.EstimatedDelivery)
}

func TestShipment_ApplyTracking_UpdatesEstimateWhenResultHasOne(t *testing.T) {
	old := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	revised := old.AddDate(0, 0, 1)
	shipment := &Shipment{Status: ShipmentInTransit, EstimatedDelivery: &old}

	shipment.ApplyTracking(&TrackingResult{
		Status:            ShipmentInTransit,
		EstimatedDelivery: &revised,
	}, time.Now())

	require.NotNil(t, shipment.EstimatedDelivery)
	assert.Equal(t, revised, *shipment.EstimatedDelivery)
}

func TestShipment_ApplyTracking_DeliverySetsActualFromNewestEvent(t *testing.T) {
	shipment := &Shipment{Status: ShipmentOutForDelivery}
	now := time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)
	deliveredAt := time.Date(2024, 6, 14, 11, 30, 0, 0, time.UTC)

	shipment.ApplyTracking(&TrackingResult{
		Status: ShipmentDelivered,
		Events: []TrackingEvent{
			{Timestamp: deliveredAt, StatusCode: "delivered"},
			{Timestamp: deliveredAt.Add(-6 * time.Hour), StatusCode: "transit"},
		},
	}, now)

	require.NotNil(t, shipment.ActualDelivery)
	assert.Equal(t, deliveredAt, *shipment.ActualDelivery)
}

func TestShipment_ApplyTracking_DeliveryWithoutEventsFallsBackToNow(t *testing.T) {
	shipment := &Shipment{Status: ShipmentOutForDelivery}
	now := time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)

	shipment.ApplyTracking(&TrackingResult{Status: ShipmentDelivered}, now)

	require.NotNil(t, shipment.ActualDelivery)
	assert.Equal(t, now, *shipment.ActualDelivery)
}

func TestShipment_ApplyTracking_DoesNotOverwriteActualDelivery(t *testing.T) {
	original := time.Date(2024, 6, 14, 11, 30, 0, 0, time.UTC)
	shipment := &Shipment{Status: ShipmentDelivered, ActualDelivery: &original}

	shipment.ApplyTracking(&TrackingResult{
		Status: ShipmentDelivered,
		Events: []TrackingEvent{{Timestamp: original.Add(time.Hour), StatusCode: "delivered"}},
	}, time.Now())

	assert.Equal(t, original, *shipment.ActualDelivery)
}

func TestShipment_RecordNotFound(t *testing.T) {
	shipment := &Shipment{Status: ShipmentLabelCreated}
	now := time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC)

	shipment.RecordNotFound(now)
	shipment.RecordNotFound(now.Add(2 * time.Hour))

	assert.Equal(t, 2, shipment.NotFoundCount)
	require.NotNil(t, shipment.LastCheckedAt)
	assert.Equal(t, now.Add(2*time.Hour), *shipment.LastCheckedAt)
	assert.Equal(t, ShipmentLabelCreated, shipment.Status)
}
