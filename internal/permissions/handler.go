package permissions

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/viper-platform/raps/internal/platform/httpx"
	"github.com/viper-platform/raps/internal/rsop"
)

// Handler manages permission registry endpoints.
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
	perms, err := h.service.List(r.Context(), ListPermissionsRequest{
		Scope:  r.URL.Query().Get("scope"),
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, perms)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	p, err := h.service.Create(r.Context(), req, actorID)
	if err != nil {
		h.logger.Error("create permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	var req UpdatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	p, err := h.service.Update(r.Context(), id, req, actorID)
	if err != nil {
		h.logger.Error("update permission", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, p)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	actorID, _ := h.mw.CurrentMemberID(r)
	if err := h.service.Delete(r.Context(), id, actorID); err != nil {
		h.logger.Error("delete permission", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"deleted": id})
}

func (h *Handler) paramID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid permission id")
		return 0, false
	}
	return id, true
}
