package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/viper-platform/raps/internal/platform/httpx"
	"github.com/viper-platform/raps/internal/rsop"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        rsop.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rsop.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context(), r.URL.Query().Get("application"))
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, roles)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) grants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.service.Grants(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, grants)
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.service.Members(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, members)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	role, err := h.service.Create(r.Context(), req, actorID)
	if err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	role, err := h.service.Update(r.Context(), id, req, actorID)
	if err != nil {
		h.logger.Error("update role", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.Delete(r.Context(), id, actorID); err != nil {
		h.logger.Error("delete role", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"deleted": id})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	var req GrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.Grant(r.Context(), id, req, actorID); err != nil {
		h.logger.Error("grant permission", slog.Any("error", err), slog.Int64("role_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, map[string]any{"role_id": id, "permission_id": req.PermissionID})
}

func (h *Handler) setGrants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	var req SetGrantsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.SetGrants(r.Context(), id, req, actorID); err != nil {
		h.logger.Error("set grants", slog.Any("error", err), slog.Int64("role_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"role_id": id, "grants": len(req.Grants)})
}

func (h *Handler) updateGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := h.paramID(w, r, "permissionID")
	if !ok {
		return
	}
	var req UpdateGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.UpdateGrant(r.Context(), id, permissionID, req, actorID); err != nil {
		h.logger.Error("update grant", slog.Any("error", err), slog.Int64("role_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"role_id": id, "permission_id": permissionID})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := h.paramID(w, r, "permissionID")
	if !ok {
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.Revoke(r.Context(), id, permissionID, actorID); err != nil {
		h.logger.Error("revoke grant", slog.Any("error", err), slog.Int64("role_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"role_id": id, "permission_id": permissionID})
}

func (h *Handler) paramID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
