// Package handlers exposes the inventory services over JSON and renders
// the server-side pages. Mutations on existing rows expect the policy
// guard to have run: they read the approved policy.Access from the
// request context.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/stockroom/auth"
	"github.com/diewo77/stockroom/httpx"
	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
	"github.com/diewo77/stockroom/internal/services"
)

func subject(r *http.Request) *ownership.Subject {
	s, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		return nil
	}
	return s
}

func listParams(r *http.Request) services.ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return services.ListParams{Query: q.Get("q"), Page: page, Limit: limit}
}

// access returns the guard's decision or answers 500 when the route was
// wired without a guard.
func access(w http.ResponseWriter, r *http.Request) (*policy.Access, bool) {
	a, ok := policy.AccessFrom(r.Context())
	if !ok {
		httpx.Error(w, r, apperr.Internal(policy.ErrNoAccess))
		return nil, false
	}
	return a, true
}
