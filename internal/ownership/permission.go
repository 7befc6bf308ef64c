package ownership

import "fmt"

// Permission is the closed set of actions a caller can ask about.
type Permission string

const (
	PermissionView   Permission = "view"
	PermissionEdit   Permission = "edit"
	PermissionDelete Permission = "delete"
	PermissionCreate Permission = "create"
)

// Predicate decides a permission for a subject and a resource.
type Predicate func(s *Subject, r Resource) bool

// predicates is the only place permissions are mapped to rules.
var predicates = map[Permission]Predicate{
	PermissionView:   CanView,
	PermissionEdit:   CanEdit,
	PermissionDelete: CanDelete,
	PermissionCreate: func(s *Subject, _ Resource) bool { return CanCreate(s) },
}

// Permissions lists the supported permissions in a stable order.
func Permissions() []Permission {
	return []Permission{PermissionView, PermissionEdit, PermissionDelete, PermissionCreate}
}

// ParsePermission validates a user-supplied permission kind.
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if _, ok := predicates[p]; !ok {
		return "", fmt.Errorf("unknown permission %q", s)
	}
	return p, nil
}

// PredicateFor returns the rule for p. Unknown permissions get a rule that
// always denies.
func PredicateFor(p Permission) Predicate {
	if fn, ok := predicates[p]; ok {
		return fn
	}
	return func(*Subject, Resource) bool { return false }
}

// Decide evaluates permission p for s on r.
func Decide(p Permission, s *Subject, r Resource) bool {
	return PredicateFor(p)(s, r)
}

// Decisions is the full set of flags for one subject/resource pair, as
// returned to clients that render controls.
type Decisions struct {
	CanView   bool `json:"canView"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
	IsOwner   bool `json:"isOwner"`
	IsAdmin   bool `json:"isAdmin"`
}

// Evaluate computes Decisions for s on r.
func Evaluate(s *Subject, r Resource) Decisions {
	return Decisions{
		CanView:   Decide(PermissionView, s, r),
		CanEdit:   Decide(PermissionEdit, s, r),
		CanDelete: Decide(PermissionDelete, s, r),
		IsOwner:   IsOwner(s, r),
		IsAdmin:   IsAdmin(s),
	}
}
