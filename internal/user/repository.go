package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	qUserByUsername = `
SELECT id, username, password_hash, role, is_active, created_at
FROM users
WHERE username = $1`

	qUserInsert = `
INSERT INTO users (id, username, password_hash, role, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
)

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	var role string
	err := r.db.QueryRowContext(ctx, qUserByUsername, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}

// Create inserts u, filling ID and CreatedAt when they are zero.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, qUserInsert,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.IsActive, u.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUsernameExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
