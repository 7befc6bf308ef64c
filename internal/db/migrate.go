package db

import (
	"github.com/diewo77/stockroom/internal/models"
	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Project{},
	)
}
