package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viper-platform/raps/internal/platform/db"
	"github.com/viper-platform/raps/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPermissions returns registered permissions ordered by name.
func (r *Repository) ListPermissions(ctx context.Context, req ListPermissionsRequest) ([]Permission, error) {
	var scope, search any
	if s := strings.TrimSpace(req.Scope); s != "" {
		scope = s
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		search = s
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM permissions
		WHERE ($1::text IS NULL OR name = $1 OR name LIKE $1 || '.%')
		  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%')
		ORDER BY name`, scope, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// GetPermission fetches a permission by ID.
func (r *Repository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
		}
		return Permission{}, err
	}
	return p, nil
}

// GrantCountForPermission counts role and member grants referencing a
// permission.
func (r *Repository) GrantCountForPermission(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1)
		     + (SELECT COUNT(*) FROM member_permissions WHERE permission_id = $1)`, id).
		Scan(&count)
	return count, err
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, arguments...)
}

func (t *txRepo) InsertPermission(ctx context.Context, p Permission) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO permissions (name, description, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id`, p.Name, p.Description).Scan(&id)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

func (t *txRepo) UpdatePermission(ctx context.Context, p Permission) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE permissions SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1`, p.ID, p.Name, p.Description)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, p.ID)
	}
	return nil
}

func (t *txRepo) DeletePermission(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	return nil
}

// mapConstraint translates constraint violations into domain errors.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: permission name already registered", httpx.ErrDuplicate)
		case "23503":
			return fmt.Errorf("%w: permission is referenced by grants", httpx.ErrValidation)
		}
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
