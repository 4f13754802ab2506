package rsop

import "time"

// Input carries everything the fold needs. The computation is a pure
// function of these values; the caller injects asOf so historical
// resolutions stay replayable.
type Input struct {
	Memberships  []Membership
	RoleGrants   []RoleGrant
	MemberGrants []MemberGrant
	AsOf         time.Time
}

// WindowActive reports whether a closed validity interval covers asOf.
// A nil bound is unbounded on that side.
func WindowActive(start, end *time.Time, asOf time.Time) bool {
	if start != nil && asOf.Before(*start) {
		return false
	}
	if end != nil && asOf.After(*end) {
		return false
	}
	return true
}

// Resolve folds role-derived grants and direct member grants into the
// final decision per permission. Precedence is structural, not
// temporal: any explicit deny beats any number of allows, and a direct
// allow never unseats a deny established by a role.
func Resolve(in Input) *ResultSet {
	rs := NewResultSet()

	activeRoles := make(map[int64]struct{}, len(in.Memberships))
	for _, m := range in.Memberships {
		if WindowActive(m.StartDate, m.EndDate, in.AsOf) {
			activeRoles[m.RoleID] = struct{}{}
		}
	}

	// Role grants first.
	for _, g := range in.RoleGrants {
		if _, ok := activeRoles[g.RoleID]; !ok {
			continue
		}
		fold(rs, g.PermissionID, g.Permission, g.Access, Source{Kind: SourceRole, RoleID: g.RoleID, Role: g.Role})
	}

	// Direct grants second, under the same deny-overrides-allow rule.
	for _, g := range in.MemberGrants {
		if !WindowActive(g.StartDate, g.EndDate, in.AsOf) {
			continue
		}
		fold(rs, g.PermissionID, g.Permission, g.Access, Source{Kind: SourceDirect})
	}

	return rs
}

// fold applies one grant to the accumulated result. Sources only ever
// name contributors whose access matches the final decision; the first
// deny replaces any allow sources outright.
func fold(rs *ResultSet, permissionID int64, permission string, access bool, src Source) {
	existing, ok := rs.byID[permissionID]
	if !ok {
		rs.put(Resolved{
			PermissionID: permissionID,
			Permission:   permission,
			Access:       access,
			Sources:      []Source{src},
		})
		return
	}
	switch {
	case existing.Access && !access:
		// Deny wins and evicts the allow contributors.
		existing.Access = false
		existing.Sources = []Source{src}
	case existing.Access == access:
		existing.Sources = append(existing.Sources, src)
	default:
		// Allow against an established deny: no effect.
	}
}
