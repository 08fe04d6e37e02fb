package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blisterpost/blisterpost/internal/medications/domain"
)

// PostgresMedicationRepository implements MedicationRepository with PostgreSQL.
type PostgresMedicationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMedicationRepository creates a new repository.
func NewPostgresMedicationRepository(pool *pgxpool.Pool) *PostgresMedicationRepository {
	return &PostgresMedicationRepository{pool: pool}
}

// FindActiveByUser returns the user's active medications.
func (r *PostgresMedicationRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error) {
	query := `
		SELECT id, user_id, name, dosage, pzn,
		       morning, noon, evening, night,
		       active, created_at, updated_at
		FROM medications
		WHERE user_id = $1
		  AND active
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var medications []*domain.Medication
	for rows.Next() {
		med := &domain.Medication{}
		err := rows.Scan(
			&med.ID,
			&med.UserID,
			&med.Name,
			&med.Dosage,
			&med.PZN,
			&med.Morning,
			&med.Noon,
			&med.Evening,
			&med.Night,
			&med.Active,
			&med.CreatedAt,
			&med.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		medications = append(medications, med)
	}
	return medications, rows.Err()
}
