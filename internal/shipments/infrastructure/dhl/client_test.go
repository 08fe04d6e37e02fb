package dhl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blisterpost/blisterpost/internal/shipments/domain"
)

func TestMapStatusCode(t *testing.T) {
	tests := []struct {
		code     string
		expected domain.ShipmentStatus
	}{
		{"pre-transit", domain.ShipmentLabelCreated},
		{"transit", domain.ShipmentInTransit},
		{"out-for-delivery", domain.ShipmentOutForDelivery},
		{"delivered", domain.ShipmentDelivered},
		{"failure", domain.ShipmentFailed},
		{"return", domain.ShipmentReturned},
		{"some-future-code", domain.ShipmentInTransit},
		{"", domain.ShipmentInTransit},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapStatusCode(tt.code))
		})
	}
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultClientConfig("test-key")
	config.BaseURL = server.URL
	return NewClient(config, nil)
}

func TestClient_Track(t *testing.T) {
	var gotKey, gotQuery string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("DHL-API-Key")
		gotQuery = r.URL.Query().Get("trackingNumber")
		fmt.Fprint(w, `{
			"shipments": [{
				"id": "00340434161094042557",
				"status": {"timestamp": "2024-06-13T08:00:00Z", "statusCode": "transit", "description": "In transit"},
				"estimatedTimeOfDelivery": "2024-06-14T12:00:00Z",
				"events": [
					{"timestamp": "2024-06-12T06:00:00Z", "statusCode": "pre-transit", "description": "Label created"},
					{"timestamp": "2024-06-13T08:00:00Z", "statusCode": "transit", "description": "Arrived at parcel center", "location": {"address": {"addressLocality": "Berlin"}}},
					{"timestamp": "2024-06-12T20:00:00Z", "statusCode": "transit", "description": "Picked up"}
				]
			}]
		}`)
	})

	result, err := client.Track(context.Background(), "00340434161094042557")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "00340434161094042557", gotQuery)

	assert.Equal(t, domain.ShipmentInTransit, result.Status)
	require.NotNil(t, result.EstimatedDelivery)
	assert.Equal(t, time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC), *result.EstimatedDelivery)

	// Events come back newest first regardless of response order.
	require.Len(t, result.Events, 3)
	assert.Equal(t, time.Date(2024, 6, 13, 8, 0, 0, 0, time.UTC), result.Events[0].Timestamp)
	assert.Equal(t, "Berlin", result.Events[0].Location)
	assert.Equal(t, time.Date(2024, 6, 12, 20, 0, 0, 0, time.UTC), result.Events[1].Timestamp)
	assert.Equal(t, time.Date(2024, 6, 12, 6, 0, 0, 0, time.UTC), result.Events[2].Timestamp)
}

func TestClient_Track_NotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	result, err := client.Track(context.Background(), "UNKNOWN123")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestClient_Track_EmptyShipmentList(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"shipments": []}`)
	})

	result, err := client.Track(context.Background(), "UNKNOWN123")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestClient_Track_ServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	result, err := client.Track(context.Background(), "00340434161094042557")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_Track_DropsMalformedEvent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"shipments": [{
				"status": {"statusCode": "transit"},
				"events": [
					{"timestamp": "not-a-timestamp", "statusCode": "transit"},
					{"timestamp": "2024-06-13T08:00:00Z", "statusCode": "transit"}
				]
			}]
		}`)
	})

	result, err := client.Track(context.Background(), "00340434161094042557")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Events, 1)
	assert.Equal(t, time.Date(2024, 6, 13, 8, 0, 0, 0, time.UTC), result.Events[0].Timestamp)
}

func TestClient_Track_ZonelessTimestampTreatedAsUTC(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"shipments": [{
				"status": {"statusCode": "delivered"},
				"events": [{"timestamp": "2024-06-14T11:30:00", "statusCode": "delivered"}]
			}]
		}`)
	})

	result, err := client.Track(context.Background(), "00340434161094042557")
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, time.Date(2024, 6, 14, 11, 30, 0, 0, time.UTC), result.Events[0].Timestamp)
}

func TestClient_Track_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	config := DefaultClientConfig("test-key")
	config.BaseURL = server.URL
	config.BreakerFailureThreshold = 2
	client := NewClient(config, nil)

	ctx := context.Background()
	_, err := client.Track(ctx, "X")
	require.Error(t, err)
	_, err = client.Track(ctx, "X")
	require.Error(t, err)

	// Third call is rejected by the breaker without hitting the server.
	_, err = client.Track(ctx, "X")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
