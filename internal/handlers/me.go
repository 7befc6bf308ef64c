package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/stockroom/httpx"
	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/identity"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
)

// MeHandler describes the signed-in subject to clients.
type MeHandler struct {
	users  *identity.UserStore
	guards *policy.Guards
}

func NewMeHandler(users *identity.UserStore, guards *policy.Guards) *MeHandler {
	return &MeHandler{users: users, guards: guards}
}

type meResponse struct {
	ID    string         `json:"id"`
	Role  ownership.Role `json:"role"`
	Email string         `json:"email,omitempty"`
	Name  string         `json:"name,omitempty"`
}

// Me handles GET /api/me. Routed behind auth.RequireAuth.
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := subject(r)
	if s == nil {
		httpx.Error(w, r, apperr.Unauthorized("authentication required"))
		return
	}
	resp := meResponse{ID: s.ID, Role: s.Role}
	u, err := h.users.Get(r.Context(), s.ID)
	switch {
	case err == nil:
		resp.Email, resp.Name = u.Email, u.Name
	case !errors.Is(err, apperr.ErrNotFound):
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type permissionResponse struct {
	Permission ownership.Permission `json:"permission"`
	Allowed    bool                 `json:"allowed"`
}

// Permissions handles GET /api/me/permissions?type=products&id=...
// With &permission=edit it answers one decision, otherwise all of them.
// A missing resource denies everything rather than revealing existence.
func (h *MeHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g, ok := h.guards.ByKind(q.Get("type"))
	if !ok {
		httpx.Error(w, r, apperr.BadRequest("type must be one of products, projects, categories"))
		return
	}
	id := q.Get("id")
	if id == "" {
		httpx.Error(w, r, apperr.BadRequest("id is required"))
		return
	}

	var res ownership.Resource
	rec, err := g.Fetch(r.Context(), g.DB, id)
	if err != nil {
		httpx.Error(w, r, apperr.Internal(err))
		return
	}
	if rec != nil {
		res = rec
	}

	s := subject(r)
	if raw := q.Get("permission"); raw != "" {
		p, err := ownership.ParsePermission(raw)
		if err != nil {
			httpx.Error(w, r, apperr.BadRequest(err.Error()))
			return
		}
		httpx.JSON(w, http.StatusOK, permissionResponse{Permission: p, Allowed: ownership.Decide(p, s, res)})
		return
	}
	httpx.JSON(w, http.StatusOK, ownership.Evaluate(s, res))
}
