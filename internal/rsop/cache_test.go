package rsop

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	rs := Resolve(Input{
		Memberships: []Membership{{RoleID: 1, Role: "R1"}},
		RoleGrants: []RoleGrant{
			{RoleID: 1, Role: "R1", PermissionID: 10, Permission: "X", Access: true},
			{RoleID: 1, Role: "R1", PermissionID: 11, Permission: "Y", Access: false},
		},
		AsOf: time.Now().UTC(),
	})
	cache.Set(ctx, 7, rs)

	got, ok := cache.Get(ctx, 7)
	require.True(t, ok)
	assert.True(t, got.Allowed("X"))
	assert.False(t, got.Allowed("Y"))

	d, ok := got.Lookup("Y")
	require.True(t, ok)
	assert.Equal(t, SourceRole, d.Sources[0].Kind)
	assert.Equal(t, "R1", d.Sources[0].Role)
}

func TestCacheMissForUnknownMember(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	_, ok := cache.Get(context.Background(), 99)
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, 7, Resolve(Input{
		MemberGrants: []MemberGrant{{PermissionID: 1, Permission: "X", Access: true}},
		AsOf:         time.Now().UTC(),
	}))
	_, ok := cache.Get(ctx, 7)
	require.True(t, ok)

	require.NoError(t, cache.Invalidate(ctx, 7))
	_, ok = cache.Get(ctx, 7)
	assert.False(t, ok)
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, 7, Resolve(Input{
		MemberGrants: []MemberGrant{{PermissionID: 1, Permission: "X", Access: true}},
		AsOf:         time.Now().UTC(),
	}))
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, 7)
	assert.False(t, ok)
}

func TestServicePrefersCacheForCurrentResolutions(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {{PermissionID: 1, Permission: "X", Access: true}}},
	}
	svc := NewService(store, cache, testLogger())
	ctx := context.Background()

	_, err := svc.Resolve(ctx, 7, Options{})
	require.NoError(t, err)
	firstCalls := store.calls

	_, err = svc.Resolve(ctx, 7, Options{})
	require.NoError(t, err)
	assert.Equal(t, firstCalls, store.calls, "second resolution should be served from cache")

	// Historical replays must bypass the cache.
	_, err = svc.Resolve(ctx, 7, Options{AsOf: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Greater(t, store.calls, firstCalls)
}
