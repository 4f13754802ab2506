package rsop

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence. All queries are
// read-only; grant mutations live in the administration packages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MembershipsForMember returns every role membership row for a member,
// including ones outside their validity window. Window filtering
// happens in the resolver against the injected asOf.
func (r *Repository) MembershipsForMember(ctx context.Context, memberID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rm.role_id, ro.name, rm.start_date, rm.end_date
		FROM role_members rm
		JOIN roles ro ON ro.id = rm.role_id
		WHERE rm.member_id = $1
		ORDER BY rm.role_id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.RoleID, &m.Role, &m.StartDate, &m.EndDate); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

// RoleGrantsForRoles returns all permission grants for the given roles.
func (r *Repository) RoleGrantsForRoles(ctx context.Context, roleIDs []int64) ([]RoleGrant, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, ro.name, rp.permission_id, p.name, rp.access
		FROM role_permissions rp
		JOIN roles ro ON ro.id = rp.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY rp.role_id, rp.permission_id`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.Role, &g.PermissionID, &g.Permission, &g.Access); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// MemberGrantsForMember returns all direct permission grants for a
// member, including ones outside their validity window.
func (r *Repository) MemberGrantsForMember(ctx context.Context, memberID int64) ([]MemberGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT mp.permission_id, p.name, mp.access, mp.start_date, mp.end_date
		FROM member_permissions mp
		JOIN permissions p ON p.id = mp.permission_id
		WHERE mp.member_id = $1
		ORDER BY mp.permission_id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []MemberGrant
	for rows.Next() {
		var g MemberGrant
		if err := rows.Scan(&g.PermissionID, &g.Permission, &g.Access, &g.StartDate, &g.EndDate); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}
