package rsop

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/viper-platform/raps/internal/platform/httpx"
	"github.com/viper-platform/raps/internal/shared"
)

// Middleware wires authorization checks for HTTP handlers. Every
// route-level "has this member got permission P" question goes through
// the resolver; there are no side channels.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current member holds at least one of the
// required permissions. A resolution failure presents exactly like a
// policy deny; callers cannot distinguish the two.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			memberID, ok := m.CurrentMemberID(r)
			if !ok {
				httpx.Fail(w, http.StatusForbidden)
				return
			}
			granted := m.Service.CheckPermissions(r.Context(), memberID, required, Options{})
			for _, p := range required {
				if granted[p] {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Fail(w, http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current member holds every required permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			memberID, ok := m.CurrentMemberID(r)
			if !ok {
				httpx.Fail(w, http.StatusForbidden)
				return
			}
			granted := m.Service.CheckPermissions(r.Context(), memberID, required, Options{})
			for _, p := range required {
				if !granted[p] {
					httpx.Fail(w, http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentMemberID extracts the authenticated member from the session.
// A malformed session reads as unauthenticated.
func (m Middleware) CurrentMemberID(r *http.Request) (int64, bool) {
	return shared.MemberIDFromContext(r.Context())
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
