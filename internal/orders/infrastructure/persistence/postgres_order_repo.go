package persistence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blisterpost/blisterpost/internal/orders/domain"
	shareddomain "github.com/blisterpost/blisterpost/internal/shared/domain"
	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/outbox"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations; the (user_id, period_start) constraint maps to ErrDuplicatePeriod.
const uniqueViolation = "23505"

// OutboxSaver writes outbox messages into an open transaction.
type OutboxSaver interface {
	SaveTx(ctx context.Context, tx pgx.Tx, msg *outbox.Message) error
}

// PostgresOrderRepository implements OrderRepository with PostgreSQL. A nil
// outbox saver drops accompanying events.
type PostgresOrderRepository struct {
	pool   *pgxpool.Pool
	outbox OutboxSaver
	logger *slog.Logger
}

// NewPostgresOrderRepository creates a new repository.
func NewPostgresOrderRepository(pool *pgxpool.Pool, outboxRepo OutboxSaver, logger *slog.Logger) *PostgresOrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOrderRepository{pool: pool, outbox: outboxRepo, logger: logger}
}

// Create stores the order, its line items and the accompanying events in one
// transaction. The events go through a savepoint, so a failed outbox insert
// still commits the order.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *domain.Order, events ...shareddomain.DomainEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, subscription_id, number, status,
			period_start, period_end,
			shipping_name, shipping_street, shipping_postal_code, shipping_city, shipping_country,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		order.ID,
		order.UserID,
		order.SubscriptionID,
		order.Number,
		string(order.Status),
		order.PeriodStart,
		order.PeriodEnd,
		order.Shipping.Name,
		order.Shipping.Street,
		order.Shipping.PostalCode,
		order.Shipping.City,
		order.Shipping.Country,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicatePeriod
		}
		return err
	}

	for _, item := range order.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (
				id, order_id, name, dosage, pzn,
				morning, noon, evening, night, quantity
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			item.ID,
			item.OrderID,
			item.Name,
			item.Dosage,
			item.PZN,
			item.Morning,
			item.Noon,
			item.Evening,
			item.Night,
			item.Quantity,
		)
		if err != nil {
			return err
		}
	}

	if len(events) > 0 && r.outbox != nil {
		if err := r.enqueueEvents(ctx, tx, events); err != nil {
			r.logger.Error("failed to enqueue order events, committing order without them",
				slog.String("order_id", order.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	return tx.Commit(ctx)
}

// enqueueEvents saves the events inside a savepoint on the order transaction.
// A rollback here leaves the order inserts intact.
func (r *PostgresOrderRepository) enqueueEvents(ctx context.Context, tx pgx.Tx, events []shareddomain.DomainEvent) error {
	nested, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer nested.Rollback(ctx)

	for _, event := range events {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			return err
		}
		if err := r.outbox.SaveTx(ctx, nested, msg); err != nil {
			return err
		}
	}

	return nested.Commit(ctx)
}

// ExistsForPeriod reports whether the user has an order starting on the given date.
func (r *PostgresOrderRepository) ExistsForPeriod(ctx context.Context, userID uuid.UUID, periodStart time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE user_id = $1 AND period_start::date = $2::date
		)
	`, userID, periodStart).Scan(&exists)
	return exists, err
}

// MarkDelivered sets the order to delivered with the given timestamp.
func (r *PostgresOrderRepository) MarkDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, delivered_at = $3, updated_at = NOW()
		WHERE id = $1
	`, orderID, string(domain.OrderDelivered), deliveredAt)
	return err
}
