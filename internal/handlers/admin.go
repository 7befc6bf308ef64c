package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diewo77/stockroom/httpx"
	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/identity"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
	"github.com/diewo77/stockroom/internal/services"
	"github.com/diewo77/stockroom/validation"
)

// AdminHandler serves /api/admin. Routed behind auth.RequireAdmin.
type AdminHandler struct {
	ownership *services.OwnershipService
	guards    *policy.Guards
	users     *identity.UserStore
	roles     identity.Invalidator
}

func NewAdminHandler(transfers *services.OwnershipService, guards *policy.Guards, users *identity.UserStore, roles identity.Invalidator) *AdminHandler {
	return &AdminHandler{ownership: transfers, guards: guards, users: users, roles: roles}
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

type roleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /api/admin/users/{id}/role {"role": "ADMIN"|"USER"}.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	role := ownership.Role(req.Role)
	if role != ownership.RoleAdmin && role != ownership.RoleUser {
		httpx.Error(w, r, validation.Violations{"role": "invalid_role"}.Err())
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.users.SetRole(r.Context(), id, role); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.roles.Invalidate(r.Context(), id); err != nil {
		slog.WarnContext(r.Context(), "role cache invalidation failed", "user", id, "err", err)
	}
	slog.InfoContext(r.Context(), "role changed", "admin", subject(r).ID, "user", id, "role", role)
	w.WriteHeader(http.StatusNoContent)
}

// Transfer handles PUT /api/admin/{kind}/{id}/owner {"userId": "..."|null}.
// A null userId orphans the resource.
func (h *AdminHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	g, ok := h.guards.ByKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Error(w, r, apperr.NotFound("unknown resource type"))
		return
	}
	var body map[string]*string
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	newOwner, present := body["userId"]
	if !present {
		httpx.Error(w, r, validation.Violations{"userId": "required"}.Err())
		return
	}

	a, err := g.Check(r.Context(), subject(r), policy.Input{"id": chi.URLParam(r, "id")})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.ownership.Transfer(r.Context(), a, g.Label, newOwner); err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
