package rsop

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/viper-platform/raps/internal/platform/httpx"
	"github.com/viper-platform/raps/internal/shared"
)

// Handler exposes the resolution endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

// MountRoutes registers resolution routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/members/{memberID}", h.resolveMember)
	r.Get("/members/{memberID}/check", h.checkOne)
	r.Post("/members/{memberID}/check", h.checkBatch)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermRSOPView))
		r.Post("/check", h.checkMembers)
	})
}

type decision struct {
	Access  bool     `json:"access"`
	Sources []Source `json:"sources"`
}

type checkBatchRequest struct {
	Permissions []string `json:"permissions,omitempty" validate:"omitempty,min=1,max=100,dive,required"`
	Scopes      []string `json:"scopes,omitempty" validate:"omitempty,min=1,max=100,dive,required"`
	AsOf        string   `json:"as_of,omitempty"`
}

type checkBatchResponse struct {
	Permissions map[string]bool `json:"permissions,omitempty"`
	Scopes      map[string]bool `json:"scopes,omitempty"`
}

type checkMembersRequest struct {
	MemberIDs  []int64 `json:"member_ids" validate:"required,min=1,max=500,dive,gt=0"`
	Permission string  `json:"permission" validate:"required"`
}

func (h *Handler) resolveMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	opts, ok := h.parseOptions(w, r)
	if !ok {
		return
	}
	rs, err := h.service.Resolve(r.Context(), memberID, opts)
	if err != nil {
		h.logger.Error("resolve member", slog.Int64("member_id", memberID), slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "resolution failed")
		return
	}
	result := make(map[string]decision, rs.Len())
	for _, d := range rs.Permissions() {
		result[d.Permission] = decision{Access: d.Access, Sources: d.Sources}
	}
	httpx.OK(w, result)
}

func (h *Handler) checkOne(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	permission := r.URL.Query().Get("permission")
	if permission == "" {
		httpx.Fail(w, http.StatusBadRequest, "permission is required")
		return
	}
	opts, ok := h.parseOptions(w, r)
	if !ok {
		return
	}
	httpx.OK(w, h.service.Check(r.Context(), memberID, permission, opts))
}

func (h *Handler) checkBatch(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	var req checkBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Permissions) == 0 && len(req.Scopes) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "permissions or scopes required")
		return
	}
	var opts Options
	if req.AsOf != "" {
		asOf, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "as_of must be RFC3339")
			return
		}
		opts.AsOf = asOf
	}
	// Permission and scope answers stay in separate maps so a name
	// requested as both never collides.
	result := checkBatchResponse{}
	if len(req.Permissions) > 0 {
		result.Permissions = h.service.CheckPermissions(r.Context(), memberID, req.Permissions, opts)
	}
	if len(req.Scopes) > 0 {
		result.Scopes = h.service.CheckScopes(r.Context(), memberID, req.Scopes, opts)
	}
	httpx.OK(w, result)
}

func (h *Handler) checkMembers(w http.ResponseWriter, r *http.Request) {
	var req checkMembersRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	granted := h.service.CheckMembers(r.Context(), req.MemberIDs, req.Permission)
	result := make(map[string]bool, len(granted))
	for id, ok := range granted {
		result[strconv.FormatInt(id, 10)] = ok
	}
	httpx.OK(w, result)
}

// authorizeTarget resolves the {memberID} parameter. Members may always
// query themselves; querying anyone else needs RAPS.RSOP.View.
func (h *Handler) authorizeTarget(w http.ResponseWriter, r *http.Request) (int64, bool) {
	memberID, err := strconv.ParseInt(chi.URLParam(r, "memberID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid member id")
		return 0, false
	}
	current, ok := h.mw.CurrentMemberID(r)
	if !ok {
		httpx.Fail(w, http.StatusForbidden)
		return 0, false
	}
	if current != memberID && !h.service.Check(r.Context(), current, shared.PermRSOPView, Options{}) {
		httpx.Fail(w, http.StatusForbidden)
		return 0, false
	}
	return memberID, true
}

func (h *Handler) parseOptions(w http.ResponseWriter, r *http.Request) (Options, bool) {
	var opts Options
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "asOf must be RFC3339")
			return opts, false
		}
		opts.AsOf = asOf
	}
	opts.Scope = r.URL.Query().Get("scope")
	return opts, true
}
