package rsop

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/viper-platform/raps/internal/shared"
)

func sessionRequest(memberID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := &shared.Session{}
	sess.SetUser(memberID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAnyAllows(t *testing.T) {
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {{PermissionID: 1, Permission: shared.PermRolesView, Access: true}}},
	}
	mw := Middleware{Service: NewService(store, nil, testLogger()), Logger: testLogger()}

	rec := httptest.NewRecorder()
	mw.RequireAny(shared.PermRolesView, shared.PermRolesEdit)(okHandler()).ServeHTTP(rec, sessionRequest("7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireAnyDeniesWithoutGrant(t *testing.T) {
	store := &stubStore{}
	mw := Middleware{Service: NewService(store, nil, testLogger()), Logger: testLogger()}

	rec := httptest.NewRecorder()
	mw.RequireAny(shared.PermRolesEdit)(okHandler()).ServeHTTP(rec, sessionRequest("7"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAnyDeniesWithoutSession(t *testing.T) {
	store := &stubStore{}
	mw := Middleware{Service: NewService(store, nil, testLogger()), Logger: testLogger()}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	mw.RequireAny(shared.PermRolesView)(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAnyStoreErrorPresentsAsDeny(t *testing.T) {
	store := &stubStore{err: errors.New("pg down")}
	mw := Middleware{Service: NewService(store, nil, testLogger()), Logger: testLogger()}

	rec := httptest.NewRecorder()
	mw.RequireAny(shared.PermRolesView)(okHandler()).ServeHTTP(rec, sessionRequest("7"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("data error must present as 403 like any deny, got %d", rec.Code)
	}
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {
			{PermissionID: 1, Permission: shared.PermRolesView, Access: true},
		}},
	}
	mw := Middleware{Service: NewService(store, nil, testLogger()), Logger: testLogger()}

	rec := httptest.NewRecorder()
	mw.RequireAll(shared.PermRolesView, shared.PermRolesEdit)(okHandler()).ServeHTTP(rec, sessionRequest("7"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	store.memberGrants[7] = append(store.memberGrants[7], MemberGrant{PermissionID: 2, Permission: shared.PermRolesEdit, Access: true})
	rec = httptest.NewRecorder()
	mw.RequireAll(shared.PermRolesView, shared.PermRolesEdit)(okHandler()).ServeHTTP(rec, sessionRequest("7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCurrentMemberIDParsing(t *testing.T) {
	mw := Middleware{Logger: testLogger()}

	if _, ok := mw.CurrentMemberID(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatalf("no session must yield no member")
	}
	if _, ok := mw.CurrentMemberID(sessionRequest("not-a-number")); ok {
		t.Fatalf("malformed id must yield no member")
	}
	id, ok := mw.CurrentMemberID(sessionRequest("42"))
	if !ok || id != 42 {
		t.Fatalf("expected 42, got %d ok=%v", id, ok)
	}
}
