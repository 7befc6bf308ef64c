package models

import (
	"time"

	"github.com/diewo77/stockroom/internal/ownership"
)

// User is an identity known to the service. ID is the subject claim issued
// by the identity provider; rows are created on first authenticated request.
type User struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Email     string    `gorm:"size:255;index" json:"email,omitempty"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Role      string    `gorm:"size:16;not null;default:'USER'" json:"role"`
}

// Subject returns the authorization view of u.
func (u *User) Subject() *ownership.Subject {
	if u == nil {
		return nil
	}
	return &ownership.Subject{ID: u.ID, Role: ownership.ParseRole(u.Role)}
}
