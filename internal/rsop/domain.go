// Package rsop computes the resultant set of policy for a member: the
// effective allow/deny outcome of every permission reachable through
// role memberships or direct grants.
package rsop

import (
	"sort"
	"strings"
	"time"
)

// Membership links a member to a role, optionally bounded by a
// validity window.
type Membership struct {
	RoleID    int64      `json:"role_id"`
	Role      string     `json:"role"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// RoleGrant is one (role, permission) grant row. Access false is an
// explicit deny, not a missing grant.
type RoleGrant struct {
	RoleID       int64  `json:"role_id"`
	Role         string `json:"role"`
	PermissionID int64  `json:"permission_id"`
	Permission   string `json:"permission"`
	Access       bool   `json:"access"`
}

// MemberGrant is a permission granted or denied directly to a member,
// optionally bounded by a validity window.
type MemberGrant struct {
	PermissionID int64      `json:"permission_id"`
	Permission   string     `json:"permission"`
	Access       bool       `json:"access"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// SourceKind distinguishes role-derived from directly granted access.
type SourceKind string

const (
	// SourceRole marks access contributed by a role membership.
	SourceRole SourceKind = "role"
	// SourceDirect marks access contributed by a direct member grant.
	SourceDirect SourceKind = "direct"
)

// Source names one contributor to a resolved decision.
type Source struct {
	Kind   SourceKind `json:"kind"`
	RoleID int64      `json:"role_id,omitempty"`
	Role   string     `json:"role,omitempty"`
}

// Resolved is the final decision for one permission together with the
// contributors that match it.
type Resolved struct {
	PermissionID int64    `json:"permission_id"`
	Permission   string   `json:"permission"`
	Access       bool     `json:"access"`
	Sources      []Source `json:"sources"`
}

// ResultSet is the resolved mapping keyed by permission. A permission
// absent from the set means the member has no opinion on it; callers
// must treat absence as no access.
type ResultSet struct {
	byID   map[int64]*Resolved
	byName map[string]*Resolved
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{
		byID:   make(map[int64]*Resolved),
		byName: make(map[string]*Resolved),
	}
}

// Get looks up a decision by permission ID.
func (rs *ResultSet) Get(permissionID int64) (Resolved, bool) {
	if rs == nil {
		return Resolved{}, false
	}
	r, ok := rs.byID[permissionID]
	if !ok {
		return Resolved{}, false
	}
	return *r, true
}

// Lookup looks up a decision by permission name.
func (rs *ResultSet) Lookup(permission string) (Resolved, bool) {
	if rs == nil {
		return Resolved{}, false
	}
	r, ok := rs.byName[permission]
	if !ok {
		return Resolved{}, false
	}
	return *r, true
}

// Allowed reports whether the named permission resolved to allow.
// Absence counts as deny.
func (rs *ResultSet) Allowed(permission string) bool {
	r, ok := rs.Lookup(permission)
	return ok && r.Access
}

// Len returns the number of decided permissions.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.byID)
}

// Permissions returns all decisions ordered by permission name.
func (rs *ResultSet) Permissions() []Resolved {
	if rs == nil {
		return nil
	}
	out := make([]Resolved, 0, len(rs.byID))
	for _, r := range rs.byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permission < out[j].Permission })
	return out
}

// Filter returns a copy restricted to permissions within the given
// scope. An empty scope returns the set unchanged.
func (rs *ResultSet) Filter(scope string) *ResultSet {
	if rs == nil || scope == "" {
		return rs
	}
	out := NewResultSet()
	for _, r := range rs.byID {
		if ScopeMatches(r.Permission, scope) {
			out.put(*r)
		}
	}
	return out
}

func (rs *ResultSet) put(r Resolved) {
	copied := r
	rs.byID[copied.PermissionID] = &copied
	rs.byName[copied.Permission] = &copied
}

// ScopeMatches reports whether a namespaced permission name belongs to
// the given instance scope. "RAPS" matches "RAPS" and "RAPS.Admin" but
// not "RAPSX.Admin".
func ScopeMatches(permission, scope string) bool {
	if scope == "" {
		return true
	}
	return permission == scope || strings.HasPrefix(permission, scope+".")
}
