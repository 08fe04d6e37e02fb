package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blisterpost/blisterpost/internal/notifications"
	ordersdomain "github.com/blisterpost/blisterpost/internal/orders/domain"
	shareddomain "github.com/blisterpost/blisterpost/internal/shared/domain"
	"github.com/blisterpost/blisterpost/internal/shipments/domain"
)

type fakeShipmentRepo struct {
	mu           sync.Mutex
	reconcilable []*domain.Shipment
	byID         map[uuid.UUID]*domain.Shipment
	updated      []*domain.Shipment
	updateErr    error
}

func (r *fakeShipmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if shipment, ok := r.byID[id]; ok {
		return shipment, nil
	}
	for _, shipment := range r.reconcilable {
		if shipment.ID == id {
			return shipment, nil
		}
	}
	return nil, nil
}

func (r *fakeShipmentRepo) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, shipment := range r.reconcilable {
		if shipment.TrackingNumber == trackingNumber {
			return shipment, nil
		}
	}
	return nil, nil
}

func (r *fakeShipmentRepo) FindReconcilable(ctx context.Context, notFoundLimit, limit int) ([]*domain.Shipment, error) {
	return r.reconcilable, nil
}

func (r *fakeShipmentRepo) Update(ctx context.Context, shipment *domain.Shipment) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, shipment)
	return nil
}

type fakeProvider struct {
	mu      sync.Mutex
	results map[string]*domain.TrackingResult
	errs    map[string]error
	calls   []string
}

func (p *fakeProvider) Track(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, trackingNumber)
	p.mu.Unlock()
	if err, ok := p.errs[trackingNumber]; ok {
		return nil, err
	}
	return p.results[trackingNumber], nil
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	delivered map[uuid.UUID]time.Time
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{delivered: make(map[uuid.UUID]time.Time)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *ordersdomain.Order, events ...shareddomain.DomainEvent) error {
	return nil
}

func (r *fakeOrderRepo) ExistsForPeriod(ctx context.Context, userID uuid.UUID, periodStart time.Time) (bool, error) {
	return false, nil
}

func (r *fakeOrderRepo) MarkDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered[orderID] = deliveredAt
	return nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	intents []notifications.Intent
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, intent notifications.Intent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intent)
	return nil
}

type denyLocker struct{}

func (denyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	return nil, false, nil
}

func openShipment(status domain.ShipmentStatus, trackingNumber string) *domain.Shipment {
	return &domain.Shipment{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		OrderNumber:    "BP-20240610-ABC123",
		UserID:         uuid.New(),
		TrackingNumber: trackingNumber,
		Carrier:        "dhl",
		Status:         status,
	}
}

func TestReconciler_AppliesTrackingUpdate(t *testing.T) {
	shipment := openShipment(domain.ShipmentInTransit, "TN1")
	repo := &fakeShipmentRepo{reconcilable: []*domain.Shipment{shipment}}
	provider := &fakeProvider{results: map[string]*domain.TrackingResult{
		"TN1": {Status: domain.ShipmentOutForDelivery},
	}}
	dispatcher := &recordingDispatcher{}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, nil, dispatcher, DefaultReconcilerConfig(), nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Polled)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Transitions)
	assert.Equal(t, domain.ShipmentOutForDelivery, shipment.Status)
	require.Len(t, repo.updated, 1)

	// out_for_delivery is not a notification-worthy transition.
	assert.Empty(t, dispatcher.intents)
}

func TestReconciler_UnchangedStatusIsSilent(t *testing.T) {
	shipment := openShipment(domain.ShipmentInTransit, "TN1")
	repo := &fakeShipmentRepo{reconcilable: []*domain.Shipment{shipment}}
	provider := &fakeProvider{results: map[string]*domain.TrackingResult{
		"TN1": {Status: domain.ShipmentInTransit},
	}}
	dispatcher := &recordingDispatcher{}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, nil, dispatcher, DefaultReconcilerConfig(), nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Transitions)
	assert.Empty(t, dispatcher.intents)
}

func TestReconciler_DeliveryMarksOrderAndNotifies(t *testing.T) {
	shipment := openShipment(domain.ShipmentOutForDelivery, "TN1")
	deliveredAt := time.Date(2024, 6, 14, 11, 30, 0, 0, time.UTC)
	repo := &fakeShipmentRepo{reconcilable: []*domain.Shipment{shipment}}
	provider := &fakeProvider{results: map[string]*domain.TrackingResult{
		"TN1": {
			Status: domain.ShipmentDelivered,
			Events: []domain.TrackingEvent{{Timestamp: deliveredAt, StatusCode: "delivered"}},
		},
	}}
	orders := newFakeOrderRepo()
	dispatcher := &recordingDispatcher{}

	r := NewReconciler(repo, orders, provider, nil, dispatcher, DefaultReconcilerConfig(), nil, nil)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, deliveredAt, orders.delivered[shipment.OrderID])
	require.NotNil(t, shipment.ActualDelivery)
	assert.Equal(t, deliveredAt, *shipment.ActualDelivery)

	require.Len(t, dispatcher.intents, 1)
	intent := dispatcher.intents[0]
	assert.Equal(t, notifications.IntentDeliveryConfirmation, intent.Type)
	assert.Equal(t, shipment.UserID, intent.UserID)
	assert.Equal(t, "BP-20240610-ABC123", intent.Context["order_number"])
}

func TestReconciler_FirstMovementSendsShippingNotification(t *testing.T) {
	shipment := openShipment(domain.ShipmentLabelCreated, "TN1")
	repo := &fakeShipmentRepo{reconcilable: []*domain.Shipment{shipment}}
	provider := &fakeProvider{results: map[string]*domain.TrackingResult{
		"TN1": {Status: domain.ShipmentInTransit},
	}}
	dispatcher := &recordingDispatcher{}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, nil, dispatcher, DefaultReconcilerConfig(), nil, nil)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, dispatcher.intents, 1)
	assert.Equal(t, notifications.IntentShippingNotification, dispatcher.intents[0].Type)
}

func TestReconciler_NotFoundIncrementsCounter(t *testing.T) {
	shipment := openShipment(domain.ShipmentLabelCreated, "TN1")
	repo := &fakeShipmentRepo{reconcilable: []*domain.Shipment{shipment}}
	provider := &fakeProvider{results: map[string]*domain.TrackingResult{}}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, nil, nil, DefaultReconcilerConfig(), nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.NotFound)
	assert.Equal(t, 1, shipment.NotFoundCount)
	assert.Equal(t, domain.ShipmentLabelCreated, shipment.Status)
	require.Len(t, repo.updated, 1)
}

func TestReconciler_ProviderErrorIsolatedPerShipment(t *testing.T) {
	bad := openShipment(domain.ShipmentInTransit, "BAD")
	good := openShipment(domain.ShipmentInTransit, "GOOD")
	repo := &fakeShipmentRepo{reconcilable: []*domain.Shipment{bad, good}}
	provider := &fakeProvider{
		results: map[string]*domain.TrackingResult{
			"GOOD": {Status: domain.ShipmentOutForDelivery},
		},
		errs: map[string]error{"BAD": errors.New("dhl unavailable")},
	}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, nil, nil, DefaultReconcilerConfig(), nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Polled)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, domain.ShipmentOutForDelivery, good.Status)
	assert.Equal(t, domain.ShipmentInTransit, bad.Status)
}

func TestReconciler_SkipsLockedShipments(t *testing.T) {
	shipment := openShipment(domain.ShipmentInTransit, "TN1")
	repo := &fakeShipmentRepo{reconcilable: []*domain.Shipment{shipment}}
	provider := &fakeProvider{results: map[string]*domain.TrackingResult{
		"TN1": {Status: domain.ShipmentDelivered},
	}}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, denyLocker{}, nil, DefaultReconcilerConfig(), nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, provider.calls)
	assert.Equal(t, domain.ShipmentInTransit, shipment.Status)
}

func TestReconciler_SkipsShipmentDeliveredSinceListing(t *testing.T) {
	listed := openShipment(domain.ShipmentInTransit, "TN1")

	// By the time the lock is held, another instance has already delivered it.
	fresh := *listed
	fresh.Status = domain.ShipmentDelivered
	repo := &fakeShipmentRepo{
		reconcilable: []*domain.Shipment{listed},
		byID:         map[uuid.UUID]*domain.Shipment{listed.ID: &fresh},
	}
	provider := &fakeProvider{results: map[string]*domain.TrackingResult{
		"TN1": {Status: domain.ShipmentDelivered},
	}}
	dispatcher := &recordingDispatcher{}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, nil, dispatcher, DefaultReconcilerConfig(), nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, provider.calls)
	assert.Empty(t, dispatcher.intents)
}

func TestReconciler_BoundedConcurrency(t *testing.T) {
	var shipments []*domain.Shipment
	results := make(map[string]*domain.TrackingResult)
	for i := 0; i < 20; i++ {
		tn := uuid.NewString()
		shipments = append(shipments, openShipment(domain.ShipmentInTransit, tn))
		results[tn] = &domain.TrackingResult{Status: domain.ShipmentInTransit}
	}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	provider := &countingProvider{
		inner: &fakeProvider{results: results},
		onCall: func() func() {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			return func() {
				mu.Lock()
				inFlight--
				mu.Unlock()
			}
		},
	}

	config := DefaultReconcilerConfig()
	config.MaxConcurrent = 3
	repo := &fakeShipmentRepo{reconcilable: shipments}

	r := NewReconciler(repo, newFakeOrderRepo(), provider, nil, nil, config, nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, result.Polled)
	assert.LessOrEqual(t, peak, 3)
}

type countingProvider struct {
	inner  *fakeProvider
	onCall func() func()
}

func (p *countingProvider) Track(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	done := p.onCall()
	defer done()
	time.Sleep(time.Millisecond)
	return p.inner.Track(ctx, trackingNumber)
}
