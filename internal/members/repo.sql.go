package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// ListMembers returns directory entries matching the filter. Ordering
// is left to the service, which sorts with a collator.
func (r *Repository) ListMembers(ctx context.Context, req ListMembersRequest) ([]Member, error) {
	var search any
	if s := strings.TrimSpace(req.Search); s != "" {
		search = s
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, display_name, email, password_hash, is_active, created_at, updated_at
		FROM members
		WHERE ($1::text IS NULL OR display_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		  AND (NOT $2::bool OR is_active)`, search, req.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.Email, &m.PasswordHash, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

// GetMember fetches a directory entry by ID.
func (r *Repository) GetMember(ctx context.Context, id int64) (Member, error) {
	var m Member
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, email, password_hash, is_active, created_at, updated_at
		FROM members WHERE id = $1`, id).
		Scan(&m.ID, &m.DisplayName, &m.Email, &m.PasswordHash, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, fmt.Errorf("%w: member %d", httpx.ErrNotFound, id)
		}
		return Member{}, err
	}
	return m, nil
}

// ListMemberships returns the role assignments of a member, current
// and windowed alike.
func (r *Repository) ListMemberships(ctx context.Context, memberID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rm.role_id, ro.name, ro.application, rm.start_date, rm.end_date, rm.created_at
		FROM role_members rm
		JOIN roles ro ON ro.id = rm.role_id
		WHERE rm.member_id = $1
		ORDER BY ro.application, ro.name`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.RoleID, &m.Role, &m.Application, &m.StartDate, &m.EndDate, &m.CreatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListDirectGrants returns the direct permission grants of a member.
func (r *Repository) ListDirectGrants(ctx context.Context, memberID int64) ([]DirectGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT mp.permission_id, p.name, mp.access, mp.start_date, mp.end_date, mp.created_at
		FROM member_permissions mp
		JOIN permissions p ON p.id = mp.permission_id
		WHERE mp.member_id = $1
		ORDER BY p.name`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []DirectGrant
	for rows.Next() {
		var g DirectGrant
		if err := rows.Scan(&g.PermissionID, &g.Permission, &g.Access, &g.StartDate, &g.EndDate, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
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

func (t *txRepo) InsertMember(ctx context.Context, m Member) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO members (display_name, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id`, m.DisplayName, m.Email, m.PasswordHash, m.IsActive).Scan(&id)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

func (t *txRepo) UpdateMember(ctx context.Context, m Member) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE members SET display_name = $2, email = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1`, m.ID, m.DisplayName, m.Email, m.IsActive)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: member %d", httpx.ErrNotFound, m.ID)
	}
	return nil
}

func (t *txRepo) InsertMembership(ctx context.Context, memberID, roleID int64, start, end *time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_members (role_id, member_id, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, NOW())`, roleID, memberID, start, end)
	return mapConstraint(err)
}

func (t *txRepo) UpdateMembership(ctx context.Context, memberID, roleID int64, start, end *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE role_members SET start_date = $3, end_date = $4
		WHERE role_id = $1 AND member_id = $2`, roleID, memberID, start, end)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: membership %d:%d", httpx.ErrNotFound, memberID, roleID)
	}
	return nil
}

func (t *txRepo) DeleteMembership(ctx context.Context, memberID, roleID int64) error {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM role_members WHERE role_id = $1 AND member_id = $2`, roleID, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: membership %d:%d", httpx.ErrNotFound, memberID, roleID)
	}
	return nil
}

func (t *txRepo) InsertDirectGrant(ctx context.Context, memberID, permissionID int64, access bool, start, end *time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO member_permissions (member_id, permission_id, access, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`, memberID, permissionID, access, start, end)
	return mapConstraint(err)
}

func (t *txRepo) UpdateDirectGrant(ctx context.Context, memberID, permissionID int64, access bool, start, end *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE member_permissions SET access = $3, start_date = $4, end_date = $5
		WHERE member_id = $1 AND permission_id = $2`, memberID, permissionID, access, start, end)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: direct grant %d:%d", httpx.ErrNotFound, memberID, permissionID)
	}
	return nil
}

func (t *txRepo) DeleteDirectGrant(ctx context.Context, memberID, permissionID int64) error {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM member_permissions WHERE member_id = $1 AND permission_id = $2`, memberID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: direct grant %d:%d", httpx.ErrNotFound, memberID, permissionID)
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
			return fmt.Errorf("%w: record already exists", httpx.ErrDuplicate)
		case "23503":
			return fmt.Errorf("%w: referenced record does not exist", httpx.ErrValidation)
		}
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
