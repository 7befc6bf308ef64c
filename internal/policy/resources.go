package policy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/ownership"
)

// Labels used in messages and audit lines.
const (
	LabelProduct  = "product"
	LabelProject  = "project"
	LabelCategory = "category"
)

// FetchOwner returns a Fetcher that selects only id and user_id from table.
func FetchOwner(table string) Fetcher {
	return func(ctx context.Context, db *gorm.DB, id string) (*ownership.Record, error) {
		var rec ownership.Record
		err := db.WithContext(ctx).
			Table(table).
			Select("id", OwnerColumn).
			Where("id = ?", id).
			Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &rec, nil
	}
}

// IsFavoriteToggle matches inputs that change nothing but isFavorite.
func IsFavoriteToggle(in Input) bool {
	if len(in) != 2 {
		return false
	}
	_, hasID := in["id"]
	_, hasFav := in["isFavorite"]
	return hasID && hasFav
}

func NewProductGuard(db *gorm.DB) *Guard {
	return &Guard{
		DB:                 db,
		Label:              LabelProduct,
		Fetch:              FetchOwner("products"),
		SkipOwnershipCheck: IsFavoriteToggle,
	}
}

func NewProjectGuard(db *gorm.DB) *Guard {
	return &Guard{DB: db, Label: LabelProject, Fetch: FetchOwner("projects")}
}

func NewCategoryGuard(db *gorm.DB) *Guard {
	return &Guard{DB: db, Label: LabelCategory, Fetch: FetchOwner("categories")}
}

// Strict returns a copy of g without the ownership exemption. Delete
// routes use it so an exempt body cannot bypass the owner check.
func (g *Guard) Strict() *Guard {
	c := *g
	c.SkipOwnershipCheck = nil
	return &c
}

// Guards bundles the three resource guards.
type Guards struct {
	Product  *Guard
	Project  *Guard
	Category *Guard
}

func NewGuards(db *gorm.DB) *Guards {
	return &Guards{
		Product:  NewProductGuard(db),
		Project:  NewProjectGuard(db),
		Category: NewCategoryGuard(db),
	}
}

// ByKind returns the guard for a resource kind as used in admin routes
// ("products", "projects", "categories").
func (g *Guards) ByKind(kind string) (*Guard, bool) {
	switch kind {
	case "products":
		return g.Product, true
	case "projects":
		return g.Project, true
	case "categories":
		return g.Category, true
	}
	return nil, false
}
