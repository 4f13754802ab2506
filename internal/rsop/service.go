package rsop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// StorePort defines the read-only data access the resolver needs.
type StorePort interface {
	MembershipsForMember(ctx context.Context, memberID int64) ([]Membership, error)
	RoleGrantsForRoles(ctx context.Context, roleIDs []int64) ([]RoleGrant, error)
	MemberGrantsForMember(ctx context.Context, memberID int64) ([]MemberGrant, error)
}

// MetricsPort records resolver outcomes. Satisfied by
// *observability.Metrics.
type MetricsPort interface {
	ObserveResolution(outcome string)
	ObserveDenial()
}

// Options adjust a single resolution.
type Options struct {
	// AsOf is the instant validity windows are evaluated against.
	// Zero means now. Non-zero values bypass the cache so historical
	// replays stay exact.
	AsOf time.Time
	// Scope restricts the returned mapping to one instance namespace.
	Scope string
}

// Service loads grant data and runs the resolution fold. Resolution is
// read-only and idempotent; concurrent calls for the same member are
// deduplicated, calls for different members are independent.
type Service struct {
	store  StorePort
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group

	// BatchConcurrency bounds the fan-out of CheckMembers.
	BatchConcurrency int
	// Metrics counts resolutions and denials when set.
	Metrics MetricsPort
}

// NewService constructs a Service. The cache may be nil.
func NewService(store StorePort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger, BatchConcurrency: 8}
}

// Resolve computes the full mapping for one member. It returns either
// the complete mapping or an error, never a partially folded one: any
// load failure or cancellation aborts the whole resolution.
func (s *Service) Resolve(ctx context.Context, memberID int64, opts Options) (*ResultSet, error) {
	replay := !opts.AsOf.IsZero()

	if !replay {
		if cached, ok := s.cache.Get(ctx, memberID); ok {
			s.observeResolution("hit")
			return cached.Filter(opts.Scope), nil
		}
	}

	key := resolveKey(memberID, opts.AsOf)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.resolve(ctx, memberID, opts.AsOf, !replay)
	})
	if err != nil {
		s.observeResolution("error")
		return nil, err
	}
	s.observeResolution("miss")
	return v.(*ResultSet).Filter(opts.Scope), nil
}

// Check reports whether one permission resolves to allow. Any error
// resolves to deny: ambiguity about access always means no access.
func (s *Service) Check(ctx context.Context, memberID int64, permission string, opts Options) bool {
	rs, err := s.Resolve(ctx, memberID, Options{AsOf: opts.AsOf})
	if err != nil {
		s.logError("rsop check", memberID, err)
		s.observeDenial()
		return false
	}
	if !rs.Allowed(permission) {
		s.observeDenial()
		return false
	}
	return true
}

// CheckScopes answers one entry per requested scope from a single
// resolution pass. A scope is allowed when any permission within it
// resolves to allow. On error every scope reports false.
func (s *Service) CheckScopes(ctx context.Context, memberID int64, scopes []string, opts Options) map[string]bool {
	result := make(map[string]bool, len(scopes))
	for _, scope := range scopes {
		result[scope] = false
	}
	rs, err := s.Resolve(ctx, memberID, Options{AsOf: opts.AsOf})
	if err != nil {
		s.logError("rsop check scopes", memberID, err)
		return result
	}
	for _, scope := range scopes {
		for _, decision := range rs.Filter(scope).Permissions() {
			if decision.Access {
				result[scope] = true
				break
			}
		}
	}
	return result
}

// CheckPermissions answers one entry per requested permission name from
// a single resolution pass; absent permissions report false.
func (s *Service) CheckPermissions(ctx context.Context, memberID int64, permissions []string, opts Options) map[string]bool {
	result := make(map[string]bool, len(permissions))
	for _, p := range permissions {
		result[p] = false
	}
	rs, err := s.Resolve(ctx, memberID, Options{AsOf: opts.AsOf})
	if err != nil {
		s.logError("rsop check permissions", memberID, err)
		return result
	}
	for _, p := range permissions {
		result[p] = rs.Allowed(p)
	}
	return result
}

// CheckMembers checks one permission across many members in parallel,
// bounded by BatchConcurrency. A member whose resolution fails reports
// false; the batch itself never fails.
func (s *Service) CheckMembers(ctx context.Context, memberIDs []int64, permission string) map[int64]bool {
	out := make([]bool, len(memberIDs))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.BatchConcurrency
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)
	for i, id := range memberIDs {
		i, id := i, id
		g.Go(func() error {
			out[i] = s.Check(gctx, id, permission, Options{})
			return nil
		})
	}
	_ = g.Wait()
	result := make(map[int64]bool, len(memberIDs))
	for i, id := range memberIDs {
		result[id] = out[i]
	}
	return result
}

func (s *Service) resolve(ctx context.Context, memberID int64, asOf time.Time, cacheable bool) (*ResultSet, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	memberships, err := s.store.MembershipsForMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("rsop: load memberships: %w", err)
	}
	roleIDs := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		roleIDs = append(roleIDs, m.RoleID)
	}
	roleGrants, err := s.store.RoleGrantsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("rsop: load role grants: %w", err)
	}
	memberGrants, err := s.store.MemberGrantsForMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("rsop: load member grants: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rs := Resolve(Input{
		Memberships:  memberships,
		RoleGrants:   roleGrants,
		MemberGrants: memberGrants,
		AsOf:         asOf,
	})

	if cacheable {
		s.cache.Set(ctx, memberID, rs)
	}
	return rs, nil
}

func (s *Service) observeResolution(outcome string) {
	if s.Metrics != nil {
		s.Metrics.ObserveResolution(outcome)
	}
}

func (s *Service) observeDenial() {
	if s.Metrics != nil {
		s.Metrics.ObserveDenial()
	}
}

func (s *Service) logError(msg string, memberID int64, err error) {
	if s.logger != nil {
		s.logger.Error(msg, slog.Int64("member_id", memberID), slog.Any("error", err))
	}
}

func resolveKey(memberID int64, asOf time.Time) string {
	if asOf.IsZero() {
		return fmt.Sprintf("%d", memberID)
	}
	return fmt.Sprintf("%d@%d", memberID, asOf.UnixNano())
}
