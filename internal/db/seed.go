package db

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
)

// SeedOptions controls Seed. AdminID is the identity provider subject of
// the bootstrap admin; when empty no admin is created.
type SeedOptions struct {
	AdminID    string
	AdminEmail string
	// Demo adds an orphaned catalog (no owner) visible on the public path
	// and editable by admins only.
	Demo bool
}

var demoCatalog = []models.Product{
	{Code: "BOLT-M6", Name: "Hex bolt M6x20", Quantity: 500, UnitPrice: 0.12},
	{Code: "NUT-M6", Name: "Hex nut M6", Quantity: 800, UnitPrice: 0.05},
	{Code: "WASH-M6", Name: "Flat washer M6", Quantity: 1000, UnitPrice: 0.02},
}

// Seed initializes required rows. It is idempotent.
func Seed(db *gorm.DB, opts SeedOptions) error {
	if opts.AdminID != "" {
		admin := models.User{ID: opts.AdminID, Email: opts.AdminEmail, Role: string(ownership.RoleAdmin)}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{"role": string(ownership.RoleAdmin)}),
		}).Create(&admin).Error
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		slog.Info("admin ensured", "id", opts.AdminID)
	}

	if !opts.Demo {
		return nil
	}
	for _, p := range demoCatalog {
		var existing models.Product
		err := db.Where("code = ? AND user_id IS NULL", p.Code).Take(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("seed lookup %s: %w", p.Code, err)
		}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("seed product %s: %w", p.Code, err)
		}
	}
	slog.Info("demo catalog ensured", "products", len(demoCatalog))
	return nil
}
