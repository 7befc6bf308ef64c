package policy

import (
	"sort"

	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/ownership"
)

// OwnerColumn is the column every ownable table stores its owner in.
const OwnerColumn = "user_id"

type null struct{}

// Null is the condition value meaning "column IS NULL".
var Null = null{}

// Conditions is an equality filter keyed by column name.
type Conditions map[string]any

func (c Conditions) clone() Conditions {
	out := make(Conditions, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// BuildOwnershipWhere scopes extra to what s may read. Admins get extra as
// is. A subject without an id is pinned to orphaned rows. Everyone else is
// pinned to their own rows, overriding any owner filter in extra.
// extra is never modified.
func BuildOwnershipWhere(s *ownership.Subject, extra Conditions) Conditions {
	out := extra.clone()
	if ownership.IsAdmin(s) {
		return out
	}
	if !s.Authenticated() {
		out[OwnerColumn] = Null
		return out
	}
	out[OwnerColumn] = s.ID
	return out
}

// RequireOwnershipWhere is BuildOwnershipWhere for endpoints that must not
// silently fall back to orphan scoping.
func RequireOwnershipWhere(s *ownership.Subject, extra Conditions) (Conditions, error) {
	if !ownership.IsAdmin(s) && !s.Authenticated() {
		return nil, apperr.Unauthorized("authentication required")
	}
	return BuildOwnershipWhere(s, extra), nil
}

// CanAccessResource is the read-side check against an owner projection.
func CanAccessResource(s *ownership.Subject, owner *string) bool {
	if ownership.IsAdmin(s) {
		return true
	}
	if !s.Authenticated() {
		return false
	}
	return owner != nil && *owner == s.ID
}

// Scope applies c to a gorm query. Keys are applied in sorted order so the
// generated SQL is stable.
func Scope(c Conditions) func(*gorm.DB) *gorm.DB {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return func(db *gorm.DB) *gorm.DB {
		for _, k := range keys {
			col := db.Statement.Quote(k)
			if c[k] == Null {
				db = db.Where(col + " IS NULL")
				continue
			}
			db = db.Where(col+" = ?", c[k])
		}
		return db
	}
}

// OwnedBy is the common case: scope a query to what s may read.
func OwnedBy(s *ownership.Subject) func(*gorm.DB) *gorm.DB {
	return Scope(BuildOwnershipWhere(s, nil))
}
