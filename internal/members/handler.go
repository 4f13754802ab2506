package members

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/viper-platform/raps/internal/platform/httpx"
	"github.com/viper-platform/raps/internal/rsop"
	"github.com/viper-platform/raps/internal/shared"
)

// Handler manages member directory endpoints.
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

type memberPage struct {
	Members    []Member          `json:"members"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListMembersRequest{
		Search:     r.URL.Query().Get("search"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	all, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list members", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	meta := shared.NewPagination(page, perPage, len(all))
	from := (meta.Page - 1) * meta.PerPage
	if from > len(all) {
		from = len(all)
	}
	to := from + meta.PerPage
	if to > len(all) {
		to = len(all)
	}
	httpx.OK(w, memberPage{Members: all[from:to], Pagination: meta})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, m)
}

func (h *Handler) memberships(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.service.Memberships(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) directGrants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.service.DirectGrants(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	m, err := h.service.Create(r.Context(), req, actorID)
	if err != nil {
		h.logger.Error("create member", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, m)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	m, err := h.service.Update(r.Context(), id, req, actorID)
	if err != nil {
		h.logger.Error("update member", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, m)
}

func (h *Handler) addMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	var req MembershipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.AddMembership(r.Context(), id, req, actorID); err != nil {
		h.logger.Error("add membership", slog.Any("error", err), slog.Int64("member_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, map[string]any{"member_id": id, "role_id": req.RoleID})
}

func (h *Handler) updateMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := h.paramID(w, r, "roleID")
	if !ok {
		return
	}
	var req UpdateMembershipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.UpdateMembership(r.Context(), id, roleID, req, actorID); err != nil {
		h.logger.Error("update membership", slog.Any("error", err), slog.Int64("member_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"member_id": id, "role_id": roleID})
}

func (h *Handler) removeMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := h.paramID(w, r, "roleID")
	if !ok {
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.RemoveMembership(r.Context(), id, roleID, actorID); err != nil {
		h.logger.Error("remove membership", slog.Any("error", err), slog.Int64("member_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"member_id": id, "role_id": roleID})
}

func (h *Handler) addDirectGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	var req DirectGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.AddDirectGrant(r.Context(), id, req, actorID); err != nil {
		h.logger.Error("add direct grant", slog.Any("error", err), slog.Int64("member_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, map[string]any{"member_id": id, "permission_id": req.PermissionID})
}

func (h *Handler) updateDirectGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := h.paramID(w, r, "permissionID")
	if !ok {
		return
	}
	var req UpdateDirectGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.UpdateDirectGrant(r.Context(), id, permissionID, req, actorID); err != nil {
		h.logger.Error("update direct grant", slog.Any("error", err), slog.Int64("member_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"member_id": id, "permission_id": permissionID})
}

func (h *Handler) removeDirectGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := h.paramID(w, r, "permissionID")
	if !ok {
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.RemoveDirectGrant(r.Context(), id, permissionID, actorID); err != nil {
		h.logger.Error("remove direct grant", slog.Any("error", err), slog.Int64("member_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"member_id": id, "permission_id": permissionID})
}

func (h *Handler) paramID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
