package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is an inventory item. UserID is nil for orphaned catalog rows.
// Implements ownership.Resource.
type Product struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// UserID is the owner; set once at creation
	UserID *string `gorm:"type:varchar(64);index" json:"userId"`

	Code        string  `gorm:"size:50;not null;index" json:"code"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description,omitempty"`
	Quantity    int     `gorm:"not null;default:0" json:"quantity"`
	UnitPrice   float64 `gorm:"type:decimal(10,2);not null;default:0" json:"unitPrice"`
	ImageURL    string  `gorm:"size:512" json:"imageUrl,omitempty"`
	IsFavorite  bool    `gorm:"not null;default:false" json:"isFavorite"`

	CategoryID *string   `gorm:"type:varchar(36);index" json:"categoryId,omitempty"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Product) ResourceID() string { return p.ID }
func (p *Product) OwnerID() *string   { return p.UserID }

// StockValue is quantity times unit price.
func (p *Product) StockValue() float64 {
	return float64(p.Quantity) * p.UnitPrice
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.Quantity > 0
}
