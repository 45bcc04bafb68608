package status

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a status check.
func (r *PostgresRepository) Create(ctx context.Context, check Check) (Check, error) {
	const query = `INSERT INTO status_checks (id, client_name, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, check.ID, check.ClientName, check.Timestamp); err != nil {
		return Check{}, err
	}
	return check, nil
}

// List returns up to limit status checks, oldest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]Check, error) {
	const query = `SELECT id, client_name, created_at FROM status_checks ORDER BY created_at LIMIT $1`

	var rows []struct {
		ID         uuid.UUID `db:"id"`
		ClientName string    `db:"client_name"`
		CreatedAt  time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}

	checks := make([]Check, 0, len(rows))
	for _, row := range rows {
		checks = append(checks, Check{ID: row.ID, ClientName: row.ClientName, Timestamp: row.CreatedAt.UTC()})
	}
	return checks, nil
}
