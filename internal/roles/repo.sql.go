package roles

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

// ListRoles returns roles ordered by application and name. An empty
// application returns every role.
func (r *Repository) ListRoles(ctx context.Context, application string) ([]Role, error) {
	var app any
	if a := strings.TrimSpace(application); a != "" {
		app = a
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, application, description, created_at, updated_at
		FROM roles
		WHERE ($1::text IS NULL OR application = $1)
		ORDER BY application, name`, app)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Application, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, application, description, created_at, updated_at
		FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Application, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
		}
		return Role{}, err
	}
	return role, nil
}

// ListGrants returns the permission grants of a role ordered by
// permission name.
func (r *Repository) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, rp.permission_id, p.name, rp.access, rp.created_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.RoleID, &g.PermissionID, &g.Permission, &g.Access, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// ListMembers returns the members of a role together with their
// validity windows.
func (r *Repository) ListMembers(ctx context.Context, roleID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rm.member_id, m.display_name, rm.start_date, rm.end_date
		FROM role_members rm
		JOIN members m ON m.id = rm.member_id
		WHERE rm.role_id = $1
		ORDER BY m.display_name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.MemberID, &m.DisplayName, &m.StartDate, &m.EndDate); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

// MemberIDsForRole returns the IDs of every member assigned to a role
// regardless of window.
func (r *Repository) MemberIDsForRole(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT member_id FROM role_members WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
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

func (t *txRepo) InsertRole(ctx context.Context, role Role) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO roles (name, application, description, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id`, role.Name, role.Application, role.Description).Scan(&id)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

func (t *txRepo) UpdateRole(ctx context.Context, role Role) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1`, role.ID, role.Name, role.Description)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, role.ID)
	}
	return nil
}

// DeleteRole removes a role and cascades over its grants and
// memberships.
func (t *txRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_members WHERE role_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) InsertGrant(ctx context.Context, roleID, permissionID int64, access bool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, access, created_at)
		VALUES ($1, $2, $3, NOW())`, roleID, permissionID, access)
	return mapConstraint(err)
}

func (t *txRepo) UpdateGrant(ctx context.Context, roleID, permissionID int64, access bool) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE role_permissions SET access = $3
		WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID, access)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: grant %d:%d", httpx.ErrNotFound, roleID, permissionID)
	}
	return nil
}

func (t *txRepo) DeleteGrant(ctx context.Context, roleID, permissionID int64) error {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: grant %d:%d", httpx.ErrNotFound, roleID, permissionID)
	}
	return nil
}

// mapConstraint translates constraint violations into domain errors.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: grant or role already exists", httpx.ErrDuplicate)
		case "23503":
			return fmt.Errorf("%w: referenced record does not exist", httpx.ErrValidation)
		}
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
