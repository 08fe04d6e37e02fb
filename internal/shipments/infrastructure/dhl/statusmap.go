package dhl

import "github.com/blisterpost/blisterpost/internal/shipments/domain"

// statusMap maps DHL Unified Tracking status codes to internal statuses.
var statusMap = map[string]domain.ShipmentStatus{
	"pre-transit":      domain.ShipmentLabelCreated,
	"transit":          domain.ShipmentInTransit,
	"out-for-delivery": domain.ShipmentOutForDelivery,
	"delivered":        domain.ShipmentDelivered,
	"failure":          domain.ShipmentFailed,
	"return":           domain.ShipmentReturned,
}

// MapStatusCode converts a DHL status code to the internal status. Codes DHL
// adds in the future fall back to in_transit so a shipment never gets stuck in
// an unmapped state.
func MapStatusCode(code string) domain.ShipmentStatus {
	if status, ok := statusMap[code]; ok {
		return status
	}
	return domain.ShipmentInTransit
}
