package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
	"github.com/diewo77/stockroom/validation"
)

type ProductService struct {
	db *gorm.DB
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

// ProductFilter narrows product lists.
type ProductFilter struct {
	ListParams
	CategoryID string
	Favorites  bool
}

// ProductInput is the body of a create request.
type ProductInput struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	ImageURL    string  `json:"imageUrl"`
	IsFavorite  bool    `json:"isFavorite"`
	CategoryID  *string `json:"categoryId"`
}

// ProductPatch is the body of an update request. Nil fields are unchanged.
// The owner is not patchable.
type ProductPatch struct {
	Code        *string  `json:"code"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Quantity    *int     `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice"`
	ImageURL    *string  `json:"imageUrl"`
	IsFavorite  *bool    `json:"isFavorite"`
	CategoryID  *string  `json:"categoryId"`
}

func (p ProductPatch) updates() map[string]any {
	u := map[string]any{}
	if p.Code != nil {
		u["code"] = strings.ToUpper(strings.TrimSpace(*p.Code))
	}
	if p.Name != nil {
		u["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		u["description"] = *p.Description
	}
	if p.Quantity != nil {
		u["quantity"] = *p.Quantity
	}
	if p.UnitPrice != nil {
		u["unit_price"] = *p.UnitPrice
	}
	if p.ImageURL != nil {
		u["image_url"] = *p.ImageURL
	}
	if p.IsFavorite != nil {
		u["is_favorite"] = *p.IsFavorite
	}
	if p.CategoryID != nil {
		if *p.CategoryID == "" {
			u["category_id"] = nil
		} else {
			u["category_id"] = *p.CategoryID
		}
	}
	return u
}

func (p ProductPatch) validate() error {
	v := make(validation.Violations)
	if p.Code != nil {
		validation.Required("code", *p.Code, v)
		validation.MaxLen("code", *p.Code, 50, v)
	}
	if p.Name != nil {
		validation.Required("name", *p.Name, v)
		validation.MaxLen("name", *p.Name, 255, v)
	}
	if p.Quantity != nil {
		validation.NonNegativeInt("quantity", *p.Quantity, v)
	}
	if p.UnitPrice != nil {
		validation.NonNegativeFloat("unitPrice", *p.UnitPrice, v)
	}
	if p.ImageURL != nil {
		validation.OptionalURL("imageUrl", *p.ImageURL, v)
	}
	return v.Err()
}

func (in *ProductInput) validate() error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)

	v := make(validation.Violations)
	validation.Required("code", in.Code, v)
	validation.MaxLen("code", in.Code, 50, v)
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.NonNegativeInt("quantity", in.Quantity, v)
	validation.NonNegativeFloat("unitPrice", in.UnitPrice, v)
	validation.OptionalURL("imageUrl", in.ImageURL, v)
	return v.Err()
}

func (s *ProductService) List(ctx context.Context, sub *ownership.Subject, f ProductFilter) (*Page[models.Product], error) {
	extra := policy.Conditions{}
	if f.CategoryID != "" {
		extra["category_id"] = f.CategoryID
	}
	if f.Favorites {
		extra["is_favorite"] = true
	}
	return s.list(ctx, policy.BuildOwnershipWhere(sub, extra), f.ListParams)
}

// ListPublic lists the shared catalog: products nobody owns.
func (s *ProductService) ListPublic(ctx context.Context, p ListParams) (*Page[models.Product], error) {
	return s.list(ctx, policy.Conditions{policy.OwnerColumn: policy.Null}, p)
}

func (s *ProductService) list(ctx context.Context, where policy.Conditions, p ListParams) (*Page[models.Product], error) {
	p = p.normalized()
	q := like(s.db.WithContext(ctx).Model(&models.Product{}).Scopes(policy.Scope(where)), p.Query, "name", "code")

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("count products: %w", err))
	}
	items := []models.Product{}
	err := q.Preload("Category").Order("name").Limit(p.Limit).Offset(p.offset()).Find(&items).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list products: %w", err))
	}
	return &Page[models.Product]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// Get returns a product the subject may view. Products the subject may not
// view are reported as missing.
func (s *ProductService) Get(ctx context.Context, sub *ownership.Subject, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).
		Scopes(policy.Scope(policy.BuildOwnershipWhere(sub, policy.Conditions{"id": id}))).
		Preload("Category").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Product not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get product %s: %w", id, err))
	}
	return &p, nil
}

// Create stores a product owned by sub.
func (s *ProductService) Create(ctx context.Context, sub *ownership.Subject, in ProductInput) (*models.Product, error) {
	if err := requireCreator(sub); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.CategoryID != nil && *in.CategoryID != "" {
		if err := checkCategory(ctx, s.db, sub, *in.CategoryID); err != nil {
			return nil, err
		}
	} else {
		in.CategoryID = nil
	}

	owner := sub.ID
	p := models.Product{
		UserID:      &owner,
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		ImageURL:    in.ImageURL,
		IsFavorite:  in.IsFavorite,
		CategoryID:  in.CategoryID,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("create product: %w", err))
	}
	return &p, nil
}

// Update applies patch to the product approved by a.
func (s *ProductService) Update(ctx context.Context, a *policy.Access, patch ProductPatch) (*models.Product, error) {
	if err := requireAccess(a); err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}
	updates := patch.updates()
	if a.SkippedOwnership {
		// the exemption only covers the favorite flag
		if patch.IsFavorite == nil {
			return nil, apperr.BadRequest("isFavorite must be true or false")
		}
		updates = map[string]any{"is_favorite": *patch.IsFavorite}
	}
	if id, ok := updates["category_id"].(string); ok {
		if err := checkCategory(ctx, s.db, a.Subject, id); err != nil {
			return nil, err
		}
	}

	if len(updates) > 0 {
		res := narrow(s.db.WithContext(ctx).Model(&models.Product{}), a).Updates(updates)
		if err := affected(res, policy.LabelProduct); err != nil {
			return nil, err
		}
	}

	var p models.Product
	if err := s.db.WithContext(ctx).Preload("Category").Take(&p, "id = ?", a.Resource.ID).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("reload product %s: %w", a.Resource.ID, err))
	}
	return &p, nil
}

// Delete removes the product approved by a and its project links.
func (s *ProductService) Delete(ctx context.Context, a *policy.Access) error {
	if err := requireAccess(a); err != nil {
		return err
	}
	// the favorite exemption never covers deletes
	if a.SkippedOwnership {
		return apperr.Forbidden(fmt.Sprintf("You don't have permission to modify this %s", policy.LabelProduct))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM project_products WHERE product_id = ?", a.Resource.ID).Error; err != nil {
			return apperr.Internal(fmt.Errorf("unlink product %s: %w", a.Resource.ID, err))
		}
		return affected(narrow(tx.Model(&models.Product{}), a).Delete(&models.Product{}), policy.LabelProduct)
	})
}

// checkCategory rejects categories the subject cannot read.
func checkCategory(ctx context.Context, db *gorm.DB, sub *ownership.Subject, id string) error {
	var rec ownership.Record
	err := db.WithContext(ctx).Table("categories").Select("id", policy.OwnerColumn).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !policy.CanAccessResource(sub, rec.UserID)) {
		return validation.Violations{"categoryId": "unknown_category"}.Err()
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("check category %s: %w", id, err))
	}
	return nil
}
