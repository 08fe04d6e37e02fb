// Package dhl adapts the DHL Unified Shipment Tracking API to the internal
// tracking provider contract.
package dhl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/blisterpost/blisterpost/internal/shipments/domain"
)

// DefaultBaseURL is the production DHL tracking endpoint.
const DefaultBaseURL = "https://api-eu.dhl.com/track/shipments"

// DefaultTimeout bounds a single tracking request.
const DefaultTimeout = 10 * time.Second

// ClientConfig configures the DHL client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// BreakerFailureThreshold is how many consecutive failures open the
	// circuit. Not-found responses never count as failures.
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
}

// DefaultClientConfig returns the default configuration.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		BaseURL:                 DefaultBaseURL,
		APIKey:                  apiKey,
		Timeout:                 DefaultTimeout,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          60 * time.Second,
	}
}

// Client calls the DHL tracking API behind a circuit breaker.
type Client struct {
	config  ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.TrackingResult]
	logger  *slog.Logger
}

// NewClient creates a DHL tracking client.
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.BreakerFailureThreshold == 0 {
		config.BreakerFailureThreshold = 5
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:    "dhl-tracking",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*domain.TrackingResult](settings),
		logger:  logger,
	}
}

// Track queries DHL for the shipment. Returns (nil, nil) when DHL does not
// know the tracking number.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	return c.breaker.Execute(func() (*domain.TrackingResult, error) {
		return c.track(ctx, trackingNumber)
	})
}

type apiResponse struct {
	Shipments []apiShipment `json:"shipments"`
}

type apiShipment struct {
	ID                      string     `json:"id"`
	Status                  apiEvent   `json:"status"`
	EstimatedTimeOfDelivery string     `json:"estimatedTimeOfDelivery"`
	Events                  []apiEvent `json:"events"`
}

type apiEvent struct {
	Timestamp   string      `json:"timestamp"`
	StatusCode  string      `json:"statusCode"`
	Description string      `json:"description"`
	Location    apiLocation `json:"location"`
}

type apiLocation struct {
	Address struct {
		AddressLocality string `json:"addressLocality"`
	} `json:"address"`
}

func (c *Client) track(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	endpoint := c.config.BaseURL + "?trackingNumber=" + url.QueryEscape(trackingNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracking request: %w", err)
	}
	req.Header.Set("DHL-API-Key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tracking request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tracking request returned status %d: %s", resp.StatusCode, body)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode tracking response: %w", err)
	}
	if len(payload.Shipments) == 0 {
		return nil, nil
	}

	shipment := payload.Shipments[0]
	result := &domain.TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         MapStatusCode(shipment.Status.StatusCode),
	}

	if shipment.EstimatedTimeOfDelivery != "" {
		if est, err := parseTimestamp(shipment.EstimatedTimeOfDelivery); err == nil {
			result.EstimatedDelivery = &est
		}
	}

	for _, raw := range shipment.Events {
		ts, err := parseTimestamp(raw.Timestamp)
		if err != nil {
			c.logger.Warn("dropping tracking event with unparseable timestamp",
				"tracking_number", trackingNumber,
				"timestamp", raw.Timestamp,
			)
			continue
		}
		result.Events = append(result.Events, domain.TrackingEvent{
			Timestamp:   ts,
			Location:    raw.Location.Address.AddressLocality,
			StatusCode:  raw.StatusCode,
			Description: raw.Description,
		})
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		return result.Events[i].Timestamp.After(result.Events[j].Timestamp)
	})

	return result, nil
}

// parseTimestamp handles both zoned RFC 3339 timestamps and the zoneless
// variant DHL sends for some facilities, which is treated as UTC.
func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
