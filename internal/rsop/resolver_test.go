package rsop

import (
	"testing"
	"time"
)

var asOf = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func TestResolveSingleRoleAllow(t *testing.T) {
	rs := Resolve(Input{
		Memberships: []Membership{{RoleID: 1, Role: "R1"}},
		RoleGrants:  []RoleGrant{{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "RAPS.ViewRoles", Access: true}},
		AsOf:        asOf,
	})
	d, ok := rs.Lookup("RAPS.ViewRoles")
	if !ok {
		t.Fatalf("expected decision for RAPS.ViewRoles")
	}
	if !d.Access {
		t.Fatalf("expected allow")
	}
	if len(d.Sources) != 1 || d.Sources[0].Role != "R1" || d.Sources[0].Kind != SourceRole {
		t.Fatalf("unexpected sources: %+v", d.Sources)
	}
}

func TestResolveTwoRolesBothAllow(t *testing.T) {
	rs := Resolve(Input{
		Memberships: []Membership{{RoleID: 1, Role: "R1"}, {RoleID: 2, Role: "R2"}},
		RoleGrants: []RoleGrant{
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
			{RoleID: 2, Role: "R2", PermissionID: 10, Permission: "X", Access: true},
		},
		AsOf: asOf,
	})
	d, _ := rs.Lookup("X")
	if !d.Access {
		t.Fatalf("expected allow")
	}
	if len(d.Sources) != 2 {
		t.Fatalf("expected both granting roles as sources, got %+v", d.Sources)
	}
}

func TestResolveDenyBeatsAllowRegardlessOfOrder(t *testing.T) {
	grantSets := [][]RoleGrant{
		{
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
			{RoleID: 2, Role: "R2", PermissionID: 10, Permission: "X", Access: false},
		},
		{
			{RoleID: 2, Role: "R2", PermissionID: 10, Permission: "X", Access: false},
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
		},
	}
	for i, grants := range grantSets {
		rs := Resolve(Input{
			Memberships: []Membership{{RoleID: 1, Role: "R1"}, {RoleID: 2, Role: "R2"}},
			RoleGrants:  grants,
			AsOf:        asOf,
		})
		d, ok := rs.Lookup("X")
		if !ok {
			t.Fatalf("case %d: expected decision", i)
		}
		if d.Access {
			t.Fatalf("case %d: deny must win", i)
		}
		for _, src := range d.Sources {
			if src.Role != "R2" {
				t.Fatalf("case %d: allow contributor leaked into sources: %+v", i, d.Sources)
			}
		}
	}
}

func TestResolveDirectAllowCannotUnseatRoleDeny(t *testing.T) {
	rs := Resolve(Input{
		Memberships:  []Membership{{RoleID: 1, Role: "R1"}},
		RoleGrants:   []RoleGrant{{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: false}},
		MemberGrants: []MemberGrant{{PermissionID: 10, Permission: "X", Access: true}},
		AsOf:         asOf,
	})
	d, _ := rs.Lookup("X")
	if d.Access {
		t.Fatalf("direct allow must not override role deny")
	}
	if len(d.Sources) != 1 || d.Sources[0].Kind != SourceRole {
		t.Fatalf("unexpected sources: %+v", d.Sources)
	}
}

func TestResolveDirectDenyBeatsRoleAllows(t *testing.T) {
	rs := Resolve(Input{
		Memberships: []Membership{{RoleID: 1, Role: "R1"}, {RoleID: 2, Role: "R2"}},
		RoleGrants: []RoleGrant{
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
			{RoleID: 2, Role: "R2", PermissionID: 10, Permission: "X", Access: true},
		},
		MemberGrants: []MemberGrant{{PermissionID: 10, Permission: "X", Access: false}},
		AsOf:         asOf,
	})
	d, _ := rs.Lookup("X")
	if d.Access {
		t.Fatalf("direct deny must beat any number of role allows")
	}
	if len(d.Sources) != 1 || d.Sources[0].Kind != SourceDirect {
		t.Fatalf("unexpected sources: %+v", d.Sources)
	}
}

func TestResolveDirectGrantAlone(t *testing.T) {
	rs := Resolve(Input{
		MemberGrants: []MemberGrant{{PermissionID: 10, Permission: "X", Access: true}},
		AsOf:         asOf,
	})
	if !rs.Allowed("X") {
		t.Fatalf("expected allow from direct grant")
	}
}

func TestResolveExpiredMembershipContributesNothing(t *testing.T) {
	yesterday := asOf.Add(-24 * time.Hour)
	in := Input{
		Memberships: []Membership{{RoleID: 1, Role: "R1", EndDate: ptrTime(yesterday)}},
		RoleGrants:  []RoleGrant{{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true}},
		AsOf:        asOf,
	}
	rs := Resolve(in)
	if _, ok := rs.Lookup("X"); ok {
		t.Fatalf("expired membership must not appear in the mapping")
	}

	// Replaying two days earlier lands inside the window.
	in.AsOf = asOf.Add(-48 * time.Hour)
	rs = Resolve(in)
	if !rs.Allowed("X") {
		t.Fatalf("expected allow when replayed inside the window")
	}
}

func TestResolveWindowBoundariesAreClosed(t *testing.T) {
	start := asOf
	end := asOf.Add(24 * time.Hour)
	in := Input{
		MemberGrants: []MemberGrant{{PermissionID: 10, Permission: "X", Access: true, StartDate: ptrTime(start), EndDate: ptrTime(end)}},
	}

	cases := []struct {
		name  string
		asOf  time.Time
		allow bool
	}{
		{"before start", start.Add(-time.Second), false},
		{"at start", start, true},
		{"inside", start.Add(time.Hour), true},
		{"at end", end, true},
		{"after end", end.Add(time.Second), false},
	}
	for _, tc := range cases {
		in.AsOf = tc.asOf
		if got := Resolve(in).Allowed("X"); got != tc.allow {
			t.Fatalf("%s: expected allow=%v, got %v", tc.name, tc.allow, got)
		}
	}
}

func TestResolvePendingMemberGrantContributesNothing(t *testing.T) {
	tomorrow := asOf.Add(24 * time.Hour)
	rs := Resolve(Input{
		MemberGrants: []MemberGrant{{PermissionID: 10, Permission: "X", Access: false, StartDate: ptrTime(tomorrow)}},
		AsOf:         asOf,
	})
	if rs.Len() != 0 {
		t.Fatalf("not-yet-started grant must not affect the decision")
	}
}

func TestResolveIdempotent(t *testing.T) {
	in := Input{
		Memberships: []Membership{{RoleID: 1, Role: "R1"}, {RoleID: 2, Role: "R2"}},
		RoleGrants: []RoleGrant{
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
			{RoleID: 2, Role: "R2", PermissionID: 11, Permission: "Y", Access: false},
		},
		MemberGrants: []MemberGrant{{PermissionID: 12, Permission: "Z", Access: true}},
		AsOf:         asOf,
	}
	first := Resolve(in).Permissions()
	second := Resolve(in).Permissions()
	if len(first) != len(second) {
		t.Fatalf("resolutions differ in size")
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Permission != b.Permission || a.Access != b.Access || len(a.Sources) != len(b.Sources) {
			t.Fatalf("resolutions differ at %d: %+v vs %+v", i, a, b)
		}
	}
}

func TestResultSetFilterByScope(t *testing.T) {
	rs := Resolve(Input{
		MemberGrants: []MemberGrant{
			{PermissionID: 1, Permission: "RAPS.Admin", Access: true},
			{PermissionID: 2, Permission: "RAPS.ViewRoles", Access: true},
			{PermissionID: 3, Permission: "VMACS.VMACS_SD.Orders", Access: true},
			{PermissionID: 4, Permission: "RAPSX.Other", Access: true},
		},
		AsOf: asOf,
	})
	filtered := rs.Filter("RAPS")
	if filtered.Len() != 2 {
		t.Fatalf("expected 2 RAPS permissions, got %d", filtered.Len())
	}
	if _, ok := filtered.Lookup("RAPSX.Other"); ok {
		t.Fatalf("prefix match must respect namespace boundaries")
	}
	if _, ok := filtered.Lookup("VMACS.VMACS_SD.Orders"); ok {
		t.Fatalf("unexpected VMACS permission in RAPS scope")
	}
}

func TestResolveAbsenceMeansNoAccess(t *testing.T) {
	rs := Resolve(Input{AsOf: asOf})
	if rs.Allowed("anything") {
		t.Fatalf("absent permission must resolve to no access")
	}
	if _, ok := rs.Lookup("anything"); ok {
		t.Fatalf("absent permission must not appear in the mapping")
	}
}
