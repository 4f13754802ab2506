package rsop

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viper-platform/raps/internal/shared"
)

func newTestHandler(store *stubStore) http.Handler {
	svc := NewService(store, nil, testLogger())
	mw := Middleware{Service: svc, Logger: testLogger()}
	h := NewHandler(testLogger(), svc, mw)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func postCheck(t *testing.T, handler http.Handler, memberID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/members/"+memberID+"/check", bytes.NewReader(raw))
	sess := &shared.Session{}
	sess.SetUser(memberID)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCheckBatchKeepsPermissionAndScopeAnswersApart(t *testing.T) {
	store := &stubStore{
		memberGrants: map[int64][]MemberGrant{7: {{PermissionID: 1, Permission: "VIPER.Orders", Access: true}}},
	}
	handler := newTestHandler(store)

	rec := postCheck(t, handler, "7", map[string]any{
		"permissions": []string{"VIPER"},
		"scopes":      []string{"VIPER"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Result struct {
			Permissions map[string]bool `json:"permissions"`
			Scopes      map[string]bool `json:"scopes"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Result.Permissions["VIPER"], "no permission literally named VIPER exists")
	assert.True(t, body.Result.Scopes["VIPER"], "the VIPER scope holds an allowed permission")
}

func TestCheckBatchRequiresPermissionsOrScopes(t *testing.T) {
	handler := newTestHandler(&stubStore{})

	rec := postCheck(t, handler, "7", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
