package roles

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viper-platform/raps/internal/audit"
	"github.com/viper-platform/raps/internal/platform/httpx"
)

type stubTx struct {
	insertedRoles  []Role
	updatedRoles   []Role
	deletedRoles   []int64
	grants         map[string]bool
	grantInsertErr error
	execCalled     int
}

func (s *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execCalled++
	return pgconn.CommandTag{}, nil
}

func (s *stubTx) InsertRole(ctx context.Context, role Role) (int64, error) {
	s.insertedRoles = append(s.insertedRoles, role)
	return int64(len(s.insertedRoles)), nil
}

func (s *stubTx) UpdateRole(ctx context.Context, role Role) error {
	s.updatedRoles = append(s.updatedRoles, role)
	return nil
}

func (s *stubTx) DeleteRole(ctx context.Context, id int64) error {
	s.deletedRoles = append(s.deletedRoles, id)
	return nil
}

func (s *stubTx) InsertGrant(ctx context.Context, roleID, permissionID int64, access bool) error {
	if s.grantInsertErr != nil {
		return s.grantInsertErr
	}
	s.grants[grantKey(roleID, permissionID)] = access
	return nil
}

func (s *stubTx) UpdateGrant(ctx context.Context, roleID, permissionID int64, access bool) error {
	key := grantKey(roleID, permissionID)
	if _, ok := s.grants[key]; !ok {
		return httpx.ErrNotFound
	}
	s.grants[key] = access
	return nil
}

func (s *stubTx) DeleteGrant(ctx context.Context, roleID, permissionID int64) error {
	key := grantKey(roleID, permissionID)
	if _, ok := s.grants[key]; !ok {
		return httpx.ErrNotFound
	}
	delete(s.grants, key)
	return nil
}

type stubRepo struct {
	tx        *stubTx
	roles     map[int64]Role
	grantList []Grant
	memberIDs map[int64][]int64
	committed bool
}

func (s *stubRepo) ListRoles(ctx context.Context, application string) ([]Role, error) {
	var out []Role
	for _, r := range s.roles {
		if application == "" || r.Application == application {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := s.roles[id]
	if !ok {
		return Role{}, httpx.ErrNotFound
	}
	return r, nil
}

func (s *stubRepo) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	return s.grantList, nil
}

func (s *stubRepo) ListMembers(ctx context.Context, roleID int64) ([]Member, error) {
	return nil, nil
}

func (s *stubRepo) MemberIDsForRole(ctx context.Context, roleID int64) ([]int64, error) {
	return s.memberIDs[roleID], nil
}

func (s *stubRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxPort) error) error {
	if err := fn(ctx, s.tx); err != nil {
		return err
	}
	s.committed = true
	return nil
}

type stubInvalidator struct {
	invalidated []int64
}

func (s *stubInvalidator) Invalidate(ctx context.Context, memberID int64) error {
	s.invalidated = append(s.invalidated, memberID)
	return nil
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		tx:        &stubTx{grants: map[string]bool{}},
		roles:     map[int64]Role{},
		memberIDs: map[int64][]int64{},
	}
}

func boolPtr(b bool) *bool { return &b }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateRecordsAuditInSameTx(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, audit.NewLogger(), nil, testLogger())

	role, err := svc.Create(context.Background(), CreateRoleRequest{Name: "Scheduler Admin", Application: "VIPER"}, 42)
	require.NoError(t, err)
	assert.Equal(t, "Scheduler Admin", role.Name)
	assert.True(t, repo.committed)
	require.Len(t, repo.tx.insertedRoles, 1)
	assert.Equal(t, 1, repo.tx.execCalled, "exactly one audit row inside the tx")
}

func TestCreateRequiresNameAndApplication(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, audit.NewLogger(), nil, testLogger())

	_, err := svc.Create(context.Background(), CreateRoleRequest{Name: "  ", Application: "VIPER"}, 42)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.False(t, repo.committed)
}

func TestGrantInvalidatesRoleMembers(t *testing.T) {
	repo := newStubRepo()
	repo.roles[7] = Role{ID: 7, Name: "Clerk", Application: "VIPER"}
	repo.memberIDs[7] = []int64{100, 101, 102}
	cache := &stubInvalidator{}
	svc := NewService(repo, audit.NewLogger(), cache, testLogger())

	err := svc.Grant(context.Background(), 7, GrantRequest{PermissionID: 3, Access: boolPtr(true)}, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101, 102}, cache.invalidated)
	assert.Equal(t, 1, repo.tx.execCalled)
}

func TestGrantFailureLeavesNoAuditAndNoInvalidation(t *testing.T) {
	repo := newStubRepo()
	repo.roles[7] = Role{ID: 7, Name: "Clerk", Application: "VIPER"}
	repo.memberIDs[7] = []int64{100}
	repo.tx.grantInsertErr = errors.New("unique violation")
	cache := &stubInvalidator{}
	svc := NewService(repo, audit.NewLogger(), cache, testLogger())

	err := svc.Grant(context.Background(), 7, GrantRequest{PermissionID: 3, Access: boolPtr(true)}, 42)
	assert.Error(t, err)
	assert.Zero(t, repo.tx.execCalled, "no audit row when the grant insert fails")
	assert.Empty(t, cache.invalidated)
}

func TestUpdateGrantFlipsAccess(t *testing.T) {
	repo := newStubRepo()
	repo.roles[7] = Role{ID: 7, Name: "Clerk", Application: "VIPER"}
	repo.tx.grants[grantKey(7, 3)] = true
	cache := &stubInvalidator{}
	svc := NewService(repo, audit.NewLogger(), cache, testLogger())

	err := svc.UpdateGrant(context.Background(), 7, 3, UpdateGrantRequest{Access: boolPtr(false)}, 42)
	require.NoError(t, err)
	assert.False(t, repo.tx.grants[grantKey(7, 3)])
}

func TestSetGrantsDiffsAgainstCurrent(t *testing.T) {
	repo := newStubRepo()
	repo.roles[7] = Role{ID: 7, Name: "Clerk", Application: "VIPER"}
	repo.grantList = []Grant{
		{RoleID: 7, PermissionID: 1, Access: true},
		{RoleID: 7, PermissionID: 2, Access: true},
	}
	repo.tx.grants[grantKey(7, 1)] = true
	repo.tx.grants[grantKey(7, 2)] = true
	repo.memberIDs[7] = []int64{100}
	cache := &stubInvalidator{}
	svc := NewService(repo, audit.NewLogger(), cache, testLogger())

	req := SetGrantsRequest{Grants: []GrantRequest{
		{PermissionID: 1, Access: boolPtr(false)},
		{PermissionID: 3, Access: boolPtr(true)},
	}}
	require.NoError(t, svc.SetGrants(context.Background(), 7, req, 42))
	assert.Equal(t, map[string]bool{grantKey(7, 1): false, grantKey(7, 3): true}, repo.tx.grants)
	assert.Equal(t, 1, repo.tx.execCalled, "one audit row for the whole replacement")
	assert.Equal(t, []int64{100}, cache.invalidated)
}

func TestSetGrantsRejectsDuplicatePermissions(t *testing.T) {
	repo := newStubRepo()
	repo.roles[7] = Role{ID: 7, Name: "Clerk", Application: "VIPER"}
	svc := NewService(repo, audit.NewLogger(), nil, testLogger())

	req := SetGrantsRequest{Grants: []GrantRequest{
		{PermissionID: 1, Access: boolPtr(true)},
		{PermissionID: 1, Access: boolPtr(false)},
	}}
	err := svc.SetGrants(context.Background(), 7, req, 42)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.False(t, repo.committed)
}

func TestRevokeUnknownGrant(t *testing.T) {
	repo := newStubRepo()
	repo.roles[7] = Role{ID: 7, Name: "Clerk", Application: "VIPER"}
	svc := NewService(repo, audit.NewLogger(), nil, testLogger())

	err := svc.Revoke(context.Background(), 7, 99, 42)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestDeleteRoleInvalidatesFormerMembers(t *testing.T) {
	repo := newStubRepo()
	repo.roles[7] = Role{ID: 7, Name: "Clerk", Application: "VIPER"}
	repo.memberIDs[7] = []int64{100, 101}
	cache := &stubInvalidator{}
	svc := NewService(repo, audit.NewLogger(), cache, testLogger())

	require.NoError(t, svc.Delete(context.Background(), 7, 42))
	assert.Equal(t, []int64{7}, repo.tx.deletedRoles)
	assert.Equal(t, []int64{100, 101}, cache.invalidated)
}

func TestGrantOnUnknownRole(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, audit.NewLogger(), nil, testLogger())

	err := svc.Grant(context.Background(), 99, GrantRequest{PermissionID: 3, Access: boolPtr(true)}, 42)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}
