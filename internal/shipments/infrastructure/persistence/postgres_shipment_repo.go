package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blisterpost/blisterpost/internal/shipments/domain"
)

const shipmentColumns = `
	s.id, s.order_id, o.number, o.user_id, s.tracking_number, s.carrier,
	s.status, s.events, s.estimated_delivery, s.actual_delivery,
	s.not_found_count, s.last_checked_at, s.created_at, s.updated_at
`

// PostgresShipmentRepository implements ShipmentRepository with PostgreSQL.
// Tracking events are stored as a JSONB column on the shipment row.
type PostgresShipmentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresShipmentRepository creates a new repository.
func NewPostgresShipmentRepository(pool *pgxpool.Pool) *PostgresShipmentRepository {
	return &PostgresShipmentRepository{pool: pool}
}

// FindByID returns a shipment, or nil when absent.
func (r *PostgresShipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments s
		JOIN orders o ON o.id = s.order_id
		WHERE s.id = $1
	`
	shipment, err := r.scanOne(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return shipment, err
}

// FindByTrackingNumber returns a shipment by carrier tracking number, or nil.
func (r *PostgresShipmentRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments s
		JOIN orders o ON o.id = s.order_id
		WHERE s.tracking_number = $1
	`
	shipment, err := r.scanOne(r.pool.QueryRow(ctx, query, trackingNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return shipment, err
}

// FindReconcilable returns non-terminal shipments under the not-found limit,
// oldest-checked first.
func (r *PostgresShipmentRepository) FindReconcilable(ctx context.Context, notFoundLimit, limit int) ([]*domain.Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments s
		JOIN orders o ON o.id = s.order_id
		WHERE s.status NOT IN ($1, $2, $3)
		  AND s.not_found_count < $4
		ORDER BY s.last_checked_at NULLS FIRST, s.created_at
		LIMIT $5
	`
	rows, err := r.pool.Query(ctx, query,
		string(domain.ShipmentDelivered),
		string(domain.ShipmentFailed),
		string(domain.ShipmentReturned),
		notFoundLimit,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []*domain.Shipment
	for rows.Next() {
		shipment, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, shipment)
	}
	return shipments, rows.Err()
}

// Update persists the shipment's tracking state.
func (r *PostgresShipmentRepository) Update(ctx context.Context, shipment *domain.Shipment) error {
	events, err := json.Marshal(shipment.Events)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE shipments
		SET status = $2,
		    events = $3,
		    estimated_delivery = $4,
		    actual_delivery = $5,
		    not_found_count = $6,
		    last_checked_at = $7,
		    updated_at = $8
		WHERE id = $1
	`,
		shipment.ID,
		string(shipment.Status),
		events,
		shipment.EstimatedDelivery,
		shipment.ActualDelivery,
		shipment.NotFoundCount,
		shipment.LastCheckedAt,
		shipment.UpdatedAt,
	)
	return err
}

func (r *PostgresShipmentRepository) scanOne(row pgx.Row) (*domain.Shipment, error) {
	shipment := &domain.Shipment{}
	var status string
	var events []byte
	err := row.Scan(
		&shipment.ID,
		&shipment.OrderID,
		&shipment.OrderNumber,
		&shipment.UserID,
		&shipment.TrackingNumber,
		&shipment.Carrier,
		&status,
		&events,
		&shipment.EstimatedDelivery,
		&shipment.ActualDelivery,
		&shipment.NotFoundCount,
		&shipment.LastCheckedAt,
		&shipment.CreatedAt,
		&shipment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	shipment.Status = domain.ShipmentStatus(status)
	if len(events) > 0 {
		if err := json.Unmarshal(events, &shipment.Events); err != nil {
			return nil, err
		}
	}
	return shipment, nil
}
