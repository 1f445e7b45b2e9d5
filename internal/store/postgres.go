package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/auth-gateway/internal/models"
)

const uniqueViolation = "23505"

const userColumns = `id, name, username, email, password, google_id, created_at, updated_at`

// PostgresStore handles user CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users table if it doesn't exist. Optional columns are
// nullable; UNIQUE ignores NULLs, so absent values never collide.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			username   VARCHAR(50)  UNIQUE,
			email      VARCHAR(255) UNIQUE NOT NULL,
			password   VARCHAR(255),
			google_id  VARCHAR(255) UNIQUE,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	id := uuid.New()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, name, username, email, password, google_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		id, u.Name, nullable(u.Username), u.Email, nullable(u.PasswordHash), nullable(u.GoogleID),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = id.String()
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	if username == "" {
		return s.GetUserByEmail(ctx, email)
	}
	return s.queryUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $2 LIMIT 1`,
		username, email,
	)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid)
}

func (s *PostgresStore) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
}

// LinkGoogleID attaches googleID to a user that has none yet.
func (s *PostgresStore) LinkGoogleID(ctx context.Context, id, googleID string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	u, err := s.queryUser(ctx,
		`UPDATE users SET google_id = $2, updated_at = NOW()
		 WHERE id = $1 AND google_id IS NULL
		 RETURNING `+userColumns,
		uid, googleID,
	)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, ErrNotFound):
		if _, err := s.GetUserByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("link google id: %w", ErrDuplicateKey)
	default:
		return nil, fmt.Errorf("link google id: %w", err)
	}
}

// ListUsers returns every user; the password column is never selected.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, username, email, NULL::varchar, google_id, created_at, updated_at
		 FROM users ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) queryUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u                            models.User
		id                           uuid.UUID
		username, password, googleID *string
	)
	err := row.Scan(&id, &u.Name, &username, &u.Email, &password, &googleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = id.String()
	u.Username = deref(username)
	u.PasswordHash = deref(password)
	u.GoogleID = deref(googleID)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
