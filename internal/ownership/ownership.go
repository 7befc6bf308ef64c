// Package ownership holds the authorization rules for ownable resources.
//
// Every function here is pure: the acting Subject and the target Resource are
// passed explicitly, there is no ambient "current user". The same rules are
// applied by the server enforcement layer (internal/policy) and by the
// rendering layer (internal/viewer), so this package is the single source of
// truth for who may view, edit, delete or create.
//
// The rule set is deliberately flat: view, edit and delete all reduce to
// "owner or admin". Orphaned resources (nil owner) are reachable by admins only.
package ownership

import "reflect"

// Role is the coarse role attached to a subject.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes a stored role. Anything that is not ADMIN is USER.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Subject is the actor of a request. A nil *Subject or an empty ID means the
// request is unauthenticated.
type Subject struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Authenticated reports whether the subject carries an identity.
func (s *Subject) Authenticated() bool {
	return s != nil && s.ID != ""
}

// Resource is the minimal capability an ownable entity exposes.
// OwnerID returns nil for orphaned resources.
type Resource interface {
	ResourceID() string
	OwnerID() *string
}

// Record is the smallest projection of an ownable row: its id and owner.
// Guards fetch only these two columns.
type Record struct {
	ID     string  `gorm:"column:id" json:"id"`
	UserID *string `gorm:"column:user_id" json:"userId"`
}

func (r *Record) ResourceID() string { return r.ID }
func (r *Record) OwnerID() *string   { return r.UserID }

// Owned builds a Record owned by userID.
func Owned(id, userID string) *Record {
	return &Record{ID: id, UserID: &userID}
}

// Orphan builds a Record with no owner.
func Orphan(id string) *Record {
	return &Record{ID: id}
}

// IsAdmin reports whether s has the admin role.
func IsAdmin(s *Subject) bool {
	return s != nil && s.Role == RoleAdmin
}

// IsOwner answers the factual ownership question. The admin role is not
// consulted: an admin who does not own r is not its owner.
func IsOwner(s *Subject, r Resource) bool {
	if isNil(r) || !s.Authenticated() {
		return false
	}
	owner := r.OwnerID()
	return owner != nil && *owner == s.ID
}

// CanEdit reports whether s may modify r.
func CanEdit(s *Subject, r Resource) bool {
	if isNil(r) || s == nil {
		return false
	}
	if IsAdmin(s) {
		return true
	}
	owner := r.OwnerID()
	if owner == nil {
		return false
	}
	return s.ID != "" && *owner == s.ID
}

// CanDelete has the same rule as CanEdit.
func CanDelete(s *Subject, r Resource) bool { return CanEdit(s, r) }

// CanView has the same rule as CanEdit.
func CanView(s *Subject, r Resource) bool { return CanEdit(s, r) }

// CanCreate reports whether s may create new resources. Any authenticated
// subject can; the creator becomes the owner.
func CanCreate(s *Subject) bool {
	return s.Authenticated()
}

// isNil catches both a nil interface and a typed nil pointer stored in it,
// e.g. a (*models.Product)(nil) returned by a failed lookup.
func isNil(r Resource) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
