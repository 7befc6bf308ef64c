// Package policy enforces ownership rules on the server: it gates every
// mutation of an ownable row and scopes read queries to what the caller may
// see. Decisions come from internal/ownership.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/diewo77/stockroom/auth"
	"github.com/diewo77/stockroom/httpx"
	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/ownership"
)

// Input is a decoded mutation request: the target id plus changed fields.
type Input map[string]any

// ID returns the target id, or "" when missing or not a string.
func (in Input) ID() string {
	id, _ := in["id"].(string)
	return id
}

// Fetcher loads the owner projection of one row. It returns (nil, nil) when
// the row does not exist.
type Fetcher func(ctx context.Context, db *gorm.DB, id string) (*ownership.Record, error)

// Guard gates mutations of one resource type.
type Guard struct {
	DB    *gorm.DB
	Label string
	Fetch Fetcher
	// SkipOwnershipCheck lets some inputs through after an existence check.
	SkipOwnershipCheck func(Input) bool
	Log                *slog.Logger
}

// Access is the outcome of a successful Check.
type Access struct {
	Resource         *ownership.Record
	Subject          *ownership.Subject
	Input            Input
	AdminOverride    bool
	SkippedOwnership bool
}

func (g *Guard) logger() *slog.Logger {
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}

// Check decides whether s may mutate the row named by in. No write may
// happen before Check returns a nil error.
func (g *Guard) Check(ctx context.Context, s *ownership.Subject, in Input) (*Access, error) {
	id := in.ID()
	if id == "" {
		return nil, apperr.BadRequest(fmt.Sprintf("%s id is required", g.Label))
	}

	rec, err := g.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if g.SkipOwnershipCheck != nil && g.SkipOwnershipCheck(in) {
		return &Access{Resource: rec, Subject: s, Input: in, SkippedOwnership: true}, nil
	}

	if ownership.IsAdmin(s) {
		owner := ""
		if rec.UserID != nil {
			owner = *rec.UserID
		}
		g.logger().InfoContext(ctx, "admin override",
			"admin", s.ID, "resource", g.Label, "id", rec.ID, "owner", owner)
		return &Access{Resource: rec, Subject: s, Input: in, AdminOverride: true}, nil
	}

	if rec.UserID == nil {
		return nil, apperr.Forbidden(fmt.Sprintf("%s has no owner and cannot be modified", capitalize(g.Label)))
	}
	if !ownership.CanEdit(s, rec) {
		return nil, apperr.Forbidden(fmt.Sprintf("You don't have permission to modify this %s", g.Label))
	}
	return &Access{Resource: rec, Subject: s, Input: in}, nil
}

func (g *Guard) load(ctx context.Context, id string) (*ownership.Record, error) {
	rec, err := g.Fetch(ctx, g.DB, id)
	if err != nil {
		g.logger().ErrorContext(ctx, "guard fetch failed", "resource", g.Label, "id", id, "err", err)
		return nil, apperr.Internal(fmt.Errorf("fetch %s %s: %w", g.Label, id, err))
	}
	if rec == nil {
		return nil, apperr.NotFound(fmt.Sprintf("%s not found", capitalize(g.Label)))
	}
	return rec, nil
}

// Middleware runs Check before next. The route parameter idParam overrides
// any id in the JSON body. The body is re-buffered so next can decode it.
func (g *Guard) Middleware(idParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			in, err := readInput(w, r)
			if err != nil {
				httpx.Error(w, r, err)
				return
			}
			if id := chi.URLParam(r, idParam); id != "" {
				in["id"] = id
			}

			subject, _ := auth.SubjectFromContext(r.Context())
			access, err := g.Check(r.Context(), subject, in)
			if err != nil {
				httpx.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccess(r.Context(), access)))
		})
	}
}

// MaxBodyBytes caps the mutation bodies a guard will buffer.
const MaxBodyBytes = 1 << 20

func readInput(w http.ResponseWriter, r *http.Request) (Input, error) {
	in := Input{}
	if r.Body == nil {
		return in, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Wrap(apperr.CodeBadRequest, "request body too large", err)
		}
		return nil, apperr.Wrap(apperr.CodeBadRequest, "unreadable body", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if len(bytes.TrimSpace(body)) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, apperr.Wrap(apperr.CodeBadRequest, "malformed JSON body", err)
	}
	if in == nil {
		in = Input{}
	}
	return in, nil
}

type accessKey struct{}

// WithAccess stores a Check result on ctx.
func WithAccess(ctx context.Context, a *Access) context.Context {
	return context.WithValue(ctx, accessKey{}, a)
}

// AccessFrom returns the Check result stored by Middleware.
func AccessFrom(ctx context.Context) (*Access, bool) {
	a, ok := ctx.Value(accessKey{}).(*Access)
	return a, ok && a != nil
}

// ErrNoAccess is returned by handlers reached without a guard.
var ErrNoAccess = errors.New("policy: no access decision on request")

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
