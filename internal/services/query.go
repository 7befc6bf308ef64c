// Package services holds the inventory operations. Reads are scoped with
// the ownership conditions of internal/policy; writes take the
// policy.Access produced by a guard and repeat its decision in the WHERE
// clause so a concurrent ownership change cannot slip through.
package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ListParams are the common list filters.
type ListParams struct {
	Query string
	Page  int
	Limit int
}

func (p ListParams) normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	p.Query = strings.TrimSpace(p.Query)
	return p
}

func (p ListParams) offset() int { return (p.Page - 1) * p.Limit }

// Page is one page of a list result.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// like builds a case-insensitive LIKE over columns. LOWER keeps it portable
// between postgres and sqlite.
func like(db *gorm.DB, q string, columns ...string) *gorm.DB {
	if q == "" {
		return db
	}
	pattern := "%" + strings.ToLower(q) + "%"
	clauses := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		clauses[i] = "LOWER(" + c + ") LIKE ?"
		args[i] = pattern
	}
	return db.Where(strings.Join(clauses, " OR "), args...)
}

// narrow restricts a write to the row the guard approved. Owner checks are
// repeated unless the guard let the request through as admin or exempt.
func narrow(db *gorm.DB, a *policy.Access) *gorm.DB {
	q := db.Where("id = ?", a.Resource.ID)
	if a.AdminOverride || a.SkippedOwnership || a.Resource.UserID == nil {
		return q
	}
	return q.Where(policy.OwnerColumn+" = ?", *a.Resource.UserID)
}

// affected turns a write result into an error. Zero rows means the row was
// deleted or changed hands after the guard looked at it.
func affected(res *gorm.DB, label string) error {
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("write %s: %w", label, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(fmt.Sprintf("%s changed while it was being modified", label))
	}
	return nil
}

func requireAccess(a *policy.Access) error {
	if a == nil || a.Resource == nil {
		return apperr.Internal(policy.ErrNoAccess)
	}
	return nil
}

func requireCreator(s *ownership.Subject) error {
	if !ownership.CanCreate(s) {
		return apperr.Unauthorized("authentication required")
	}
	return nil
}
