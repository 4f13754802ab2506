package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viper-platform/raps/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateSession(ctx context.Context, rec SessionRecord) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, is_active
		FROM members WHERE LOWER(email) = LOWER($1)`, email).
		Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateSession persists a new login session for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, rec SessionRecord) error {
	var ip, ua any
	if rec.IP != "" {
		ip = rec.IP
	}
	if rec.UserAgent != "" {
		ua = rec.UserAgent
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, member_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		rec.ID, rec.MemberID, rec.CreatedAt, rec.ExpiresAt, ip, ua)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
