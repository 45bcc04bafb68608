package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository implements UserStore and SessionStore using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, picture, age, country, profile_complete, created_at, total_games, wins, losses, draws`

// FindUserByEmail looks up a user by their email address.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toUser(), nil
}

// CreateUser inserts a new user into the database.
func (r *PostgresRepository) CreateUser(ctx context.Context, user User) error {
	const query = `
		INSERT INTO users (id, email, name, picture, age, country, profile_complete, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		nullString(user.Picture),
		user.Age,
		user.Country,
		user.ProfileComplete,
		user.CreatedAt,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserExists
	}
	return nil
}

// UpdateUserProfile applies the supplied fields in a single statement.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, email string, update ProfileUpdate) (*User, error) {
	query := `
		UPDATE users
		SET age = COALESCE($2, age),
			country = COALESCE($3, country),
			profile_complete = profile_complete
				OR (COALESCE($2, age) IS NOT NULL AND COALESCE($3, country) IS NOT NULL)
		WHERE email = $1
		RETURNING ` + userColumns

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, email, update.Age, update.Country); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toUser(), nil
}

// ListUsers returns up to limit users.
func (r *PostgresRepository) ListUsers(ctx context.Context, limit int) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users LIMIT $1`

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}

	users := make([]User, 0, len(rows))
	for i := range rows {
		users = append(users, *rows[i].toUser())
	}
	return users, nil
}

// CreateSession inserts a session, replacing an existing row with the same token.
func (r *PostgresRepository) CreateSession(ctx context.Context, session Session) error {
	const query = `
		INSERT INTO sessions (session_token, user_email, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_token) DO UPDATE
		SET user_email = EXCLUDED.user_email, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
	`

	_, err := r.db.ExecContext(ctx, query,
		session.Token,
		session.UserEmail,
		session.ExpiresAt.UTC(),
		session.CreatedAt.UTC(),
	)
	return err
}

// FindSession looks up a session by token.
func (r *PostgresRepository) FindSession(ctx context.Context, token string) (*Session, error) {
	const query = `
		SELECT session_token, user_email, expires_at, created_at
		FROM sessions
		WHERE session_token = $1
	`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.toSession(), nil
}

// DeleteSession removes a session from the database.
func (r *PostgresRepository) DeleteSession(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE session_token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// DeleteExpiredSessions removes all expired sessions.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ping verifies the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// userRow is a database row representation of User.
type userRow struct {
	ID              uuid.UUID      `db:"id"`
	Email           string         `db:"email"`
	Name            string         `db:"name"`
	Picture         sql.NullString `db:"picture"`
	Age             sql.NullInt64  `db:"age"`
	Country         sql.NullString `db:"country"`
	ProfileComplete bool           `db:"profile_complete"`
	CreatedAt       time.Time      `db:"created_at"`
	TotalGames      int            `db:"total_games"`
	Wins            int            `db:"wins"`
	Losses          int            `db:"losses"`
	Draws           int            `db:"draws"`
}

func (r *userRow) toUser() *User {
	user := &User{
		ID:              r.ID,
		Email:           r.Email,
		Name:            r.Name,
		Picture:         r.Picture.String,
		ProfileComplete: r.ProfileComplete,
		CreatedAt:       r.CreatedAt.UTC(),
		Stats: Stats{
			TotalGames: r.TotalGames,
			Wins:       r.Wins,
			Losses:     r.Losses,
			Draws:      r.Draws,
		},
	}
	if r.Age.Valid {
		age := int(r.Age.Int64)
		user.Age = &age
	}
	if r.Country.Valid {
		country := r.Country.String
		user.Country = &country
	}
	return user
}

// sessionRow is a database row representation of Session.
type sessionRow struct {
	Token     string    `db:"session_token"`
	UserEmail string    `db:"user_email"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *sessionRow) toSession() *Session {
	return &Session{
		Token:     r.Token,
		UserEmail: r.UserEmail,
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
