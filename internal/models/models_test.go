package models

import (
	"testing"

	"github.com/diewo77/stockroom/internal/ownership"
)

var (
	_ ownership.Resource = (*Product)(nil)
	_ ownership.Resource = (*Project)(nil)
	_ ownership.Resource = (*Category)(nil)
)

func strPtr(s string) *string { return &s }

func TestProduct_OwnerID(t *testing.T) {
	p := &Product{ID: "p1", UserID: strPtr("user-1")}
	if got := p.OwnerID(); got == nil || *got != "user-1" {
		t.Errorf("OwnerID() = %v, want user-1", got)
	}
	if got := (&Product{ID: "p2"}).OwnerID(); got != nil {
		t.Errorf("OwnerID() of orphan = %v, want nil", *got)
	}
}

func TestProduct_StockValue(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		unitPrice float64
		want      float64
	}{
		{"empty stock", 0, 12.5, 0},
		{"single unit", 1, 12.5, 12.5},
		{"several units", 4, 2.25, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Quantity: tt.quantity, UnitPrice: tt.unitPrice}
			if diff := p.StockValue() - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("StockValue() = %f, want %f", p.StockValue(), tt.want)
			}
		})
	}
}

func TestProduct_InStock(t *testing.T) {
	if (&Product{Quantity: 0}).InStock() {
		t.Error("zero quantity should not be in stock")
	}
	if !(&Product{Quantity: 3}).InStock() {
		t.Error("positive quantity should be in stock")
	}
}

func TestBeforeCreate_AssignsID(t *testing.T) {
	p := &Product{}
	if err := p.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected an id to be assigned")
	}

	keep := &Category{ID: "fixed"}
	_ = keep.BeforeCreate(nil)
	if keep.ID != "fixed" {
		t.Errorf("BeforeCreate overwrote id: %s", keep.ID)
	}
}

func TestUser_Subject(t *testing.T) {
	tests := []struct {
		role string
		want ownership.Role
	}{
		{"ADMIN", ownership.RoleAdmin},
		{"USER", ownership.RoleUser},
		{"", ownership.RoleUser},
		{"superuser", ownership.RoleUser},
	}
	for _, tt := range tests {
		s := (&User{ID: "u1", Role: tt.role}).Subject()
		if s.ID != "u1" || s.Role != tt.want {
			t.Errorf("Subject() for role %q = %+v", tt.role, s)
		}
	}

	var nilUser *User
	if nilUser.Subject() != nil {
		t.Error("nil user should have nil subject")
	}
}

func TestProjectAndCategory_AreOwnable(t *testing.T) {
	owner := "user-1"
	s := &ownership.Subject{ID: owner, Role: ownership.RoleUser}
	if !ownership.CanEdit(s, &Project{ID: "pr1", UserID: &owner}) {
		t.Error("owner should edit own project")
	}
	if ownership.CanEdit(s, &Category{ID: "c1"}) {
		t.Error("orphaned category is admin-only")
	}
}
