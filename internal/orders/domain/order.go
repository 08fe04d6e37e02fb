// Package domain holds the blister order aggregate. An order is a
// point-in-time snapshot: address and line items are copied at creation and
// never follow later profile or medication changes.
package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	medsdomain "github.com/blisterpost/blisterpost/internal/medications/domain"
)

// ErrDuplicatePeriod is returned when an order already exists for the same
// user and period start. The unique constraint on (user_id, period_start)
// raises it even under concurrent job runs.
var ErrDuplicatePeriod = errors.New("order already exists for this period")

// OrderStatus tracks fulfillment progress.
type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderProcessing    OrderStatus = "processing"
	OrderPharmacyCheck OrderStatus = "pharmacy_check"
	OrderPackaging     OrderStatus = "packaging"
	OrderShipped       OrderStatus = "shipped"
	OrderDelivered     OrderStatus = "delivered"
	OrderCanceled      OrderStatus = "canceled"
)

// ShippingAddress is the address snapshot frozen at order creation.
type ShippingAddress struct {
	Name       string
	Street     string
	PostalCode string
	City       string
	Country    string
}

// LineItem is a frozen copy of one medication at order-creation time.
type LineItem struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	Name     string
	Dosage   string
	PZN      string
	Morning  bool
	Noon     bool
	Evening  bool
	Night    bool
	Quantity int
}

// Order is one blister delivery covering the period [PeriodStart, PeriodEnd).
type Order struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	SubscriptionID *uuid.UUID
	Number         string
	Status         OrderStatus
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Shipping       ShippingAddress
	Items          []LineItem
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder creates a pending order for the given period, snapshotting the
// address and the medications as they are right now. An empty medication list
// is valid and yields an order with no line items.
func NewOrder(
	userID uuid.UUID,
	subscriptionID uuid.UUID,
	periodStart, periodEnd time.Time,
	address ShippingAddress,
	medications []*medsdomain.Medication,
) *Order {
	now := time.Now().UTC()
	orderID := uuid.New()
	subID := subscriptionID

	order := &Order{
		ID:             orderID,
		UserID:         userID,
		SubscriptionID: &subID,
		Number:         NewOrderNumber(periodStart),
		Status:         OrderPending,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Shipping:       address,
		Items:          make([]LineItem, 0, len(medications)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, med := range medications {
		order.Items = append(order.Items, LineItem{
			ID:       uuid.New(),
			OrderID:  orderID,
			Name:     med.Name,
			Dosage:   med.Dosage,
			PZN:      med.PZN,
			Morning:  med.Morning,
			Noon:     med.Noon,
			Evening:  med.Evening,
			Night:    med.Night,
			Quantity: 1,
		})
	}

	return order
}

// MarkDelivered records delivery on the order.
func (o *Order) MarkDelivered(at time.Time) {
	o.Status = OrderDelivered
	o.DeliveredAt = &at
	o.UpdatedAt = time.Now().UTC()
}

// IsTerminal reports whether the order has reached a final state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderDelivered || o.Status == OrderCanceled
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNumber builds a human-readable order number such as
// BP-20240610-K7M2QX. The suffix is random; uniqueness is ultimately enforced
// by the orders.number constraint.
func NewOrderNumber(periodStart time.Time) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand never fails on supported platforms; fall back to UUID bytes.
		id := uuid.New()
		copy(suffix, id[:])
	}
	for i, b := range suffix {
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("BP-%s-%s", periodStart.Format("20060102"), suffix)
}
