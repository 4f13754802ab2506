package rsop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	memberships  map[int64][]Membership
	roleGrants   []RoleGrant
	memberGrants map[int64][]MemberGrant
	err          error
	calls        int
}

func (s *stubStore) MembershipsForMember(ctx context.Context, memberID int64) ([]Membership, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.memberships[memberID], nil
}

func (s *stubStore) RoleGrantsForRoles(ctx context.Context, roleIDs []int64) ([]RoleGrant, error) {
	if s.err != nil {
		return nil, s.err
	}
	want := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		want[id] = struct{}{}
	}
	var out []RoleGrant
	for _, g := range s.roleGrants {
		if _, ok := want[g.RoleID]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubStore) MemberGrantsForMember(ctx context.Context, memberID int64) ([]MemberGrant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.memberGrants[memberID], nil
}

type stubMetrics struct {
	resolutions map[string]int
	denials     int
}

func (s *stubMetrics) ObserveResolution(outcome string) {
	if s.resolutions == nil {
		s.resolutions = map[string]int{}
	}
	s.resolutions[outcome]++
}

func (s *stubMetrics) ObserveDenial() { s.denials++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceFailsClosedOnStoreError(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	svc := NewService(store, nil, testLogger())

	if svc.Check(context.Background(), 1, "RAPS.Admin", Options{}) {
		t.Fatalf("store error must resolve to deny")
	}

	scopes := svc.CheckScopes(context.Background(), 1, []string{"RAPS", "VMACS"}, Options{})
	for scope, allowed := range scopes {
		if allowed {
			t.Fatalf("scope %s must be denied on store error", scope)
		}
	}

	members := svc.CheckMembers(context.Background(), []int64{1, 2, 3}, "RAPS.Admin")
	for id, allowed := range members {
		if allowed {
			t.Fatalf("member %d must be denied on store error", id)
		}
	}

	_, err := svc.Resolve(context.Background(), 1, Options{})
	if err == nil {
		t.Fatalf("full resolution must surface the error, never a partial mapping")
	}
}

func TestServiceBatchConsistentWithFullResolution(t *testing.T) {
	store := &stubStore{
		memberships: map[int64][]Membership{7: {{RoleID: 1, Role: "R1"}, {RoleID: 2, Role: "R2"}}},
		roleGrants: []RoleGrant{
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
			{RoleID: 2, Role: "R2", PermissionID: 11, Permission: "Y", Access: false},
		},
	}
	svc := NewService(store, nil, testLogger())

	rs, err := svc.Resolve(context.Background(), 7, Options{})
	require.NoError(t, err)

	batch := svc.CheckPermissions(context.Background(), 7, []string{"X", "Y", "Z"}, Options{})
	assert.Equal(t, map[string]bool{"X": true, "Y": false, "Z": false}, batch)
	for _, p := range []string{"X", "Y", "Z"} {
		assert.Equal(t, rs.Allowed(p), batch[p], "batch result for %s must match full resolution", p)
	}
}

func TestServiceResolveRespectsAsOf(t *testing.T) {
	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	store := &stubStore{
		memberships: map[int64][]Membership{
			7: {{RoleID: 1, Role: "R1", EndDate: &yesterday}},
		},
		roleGrants: []RoleGrant{{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true}},
	}
	svc := NewService(store, nil, testLogger())

	rs, err := svc.Resolve(context.Background(), 7, Options{})
	require.NoError(t, err)
	assert.False(t, rs.Allowed("X"), "membership ended yesterday")

	rs, err = svc.Resolve(context.Background(), 7, Options{AsOf: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	assert.True(t, rs.Allowed("X"), "replay two days back lands inside the window")
}

func TestServiceResolveScopeFilter(t *testing.T) {
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {
			{PermissionID: 1, Permission: "RAPS.Admin", Access: true},
			{PermissionID: 2, Permission: "VMACS.Orders", Access: true},
		}},
	}
	svc := NewService(store, nil, testLogger())

	rs, err := svc.Resolve(context.Background(), 7, Options{Scope: "VMACS"})
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
	assert.True(t, rs.Allowed("VMACS.Orders"))
}

func TestServiceResolveCancelledContext(t *testing.T) {
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {{PermissionID: 1, Permission: "X", Access: true}}},
	}
	svc := NewService(store, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Resolve(ctx, 7, Options{})
	assert.Error(t, err, "cancelled resolution must not return a mapping")
}

func TestServiceRecordsResolutionOutcomes(t *testing.T) {
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {{PermissionID: 1, Permission: "RAPS.Admin", Access: true}}},
	}
	cache, _ := newTestCache(t, time.Minute)
	metrics := &stubMetrics{}
	svc := NewService(store, cache, testLogger())
	svc.Metrics = metrics

	_, err := svc.Resolve(context.Background(), 7, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.resolutions["miss"])

	_, err = svc.Resolve(context.Background(), 7, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.resolutions["hit"])

	store.err = errors.New("connection refused")
	_, err = svc.Resolve(context.Background(), 8, Options{})
	assert.Error(t, err)
	assert.Equal(t, 1, metrics.resolutions["error"])
}

func TestServiceCountsDenials(t *testing.T) {
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {{PermissionID: 1, Permission: "RAPS.Admin", Access: true}}},
	}
	metrics := &stubMetrics{}
	svc := NewService(store, nil, testLogger())
	svc.Metrics = metrics

	assert.True(t, svc.Check(context.Background(), 7, "RAPS.Admin", Options{}))
	assert.Zero(t, metrics.denials, "an allowed check is not a denial")

	assert.False(t, svc.Check(context.Background(), 7, "RAPS.Missing", Options{}))
	assert.Equal(t, 1, metrics.denials)

	store.err = errors.New("connection refused")
	assert.False(t, svc.Check(context.Background(), 8, "RAPS.Admin", Options{}))
	assert.Equal(t, 2, metrics.denials, "a failed-closed check counts as a denial")
}

func TestServiceCheckMembersFanOut(t *testing.T) {
	store := &stubStore{
		memberships: map[int64][]Membership{
			1: {{RoleID: 1, Role: "R1"}},
			2: {{RoleID: 2, Role: "R2"}},
		},
		roleGrants: []RoleGrant{
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
			{RoleID: 2, Role: "R2", PermissionID: 10, Permission: "X", Access: false},
		},
	}
	svc := NewService(store, nil, testLogger())
	svc.BatchConcurrency = 2

	result := svc.CheckMembers(context.Background(), []int64{1, 2, 3}, "X")
	assert.Equal(t, map[int64]bool{1: true, 2: false, 3: false}, result)
}
