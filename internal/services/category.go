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

type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// CategoryInput is the body of create and update requests.
type CategoryInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (in CategoryInput) validate(create bool) error {
	v := make(validation.Violations)
	if in.Name != nil || create {
		name := ""
		if in.Name != nil {
			name = *in.Name
		}
		validation.Required("name", name, v)
		validation.MaxLen("name", name, 100, v)
	}
	return v.Err()
}

func (s *CategoryService) List(ctx context.Context, sub *ownership.Subject) ([]models.Category, error) {
	items := []models.Category{}
	err := s.db.WithContext(ctx).Scopes(policy.OwnedBy(sub)).Order("name").Find(&items).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list categories: %w", err))
	}
	return items, nil
}

func (s *CategoryService) Get(ctx context.Context, sub *ownership.Subject, id string) (*models.Category, error) {
	var c models.Category
	err := s.db.WithContext(ctx).
		Scopes(policy.Scope(policy.BuildOwnershipWhere(sub, policy.Conditions{"id": id}))).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Category not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get category %s: %w", id, err))
	}
	return &c, nil
}

func (s *CategoryService) Create(ctx context.Context, sub *ownership.Subject, in CategoryInput) (*models.Category, error) {
	if err := requireCreator(sub); err != nil {
		return nil, err
	}
	if err := in.validate(true); err != nil {
		return nil, err
	}
	owner := sub.ID
	c := models.Category{UserID: &owner, Name: strings.TrimSpace(*in.Name)}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("create category: %w", err))
	}
	return &c, nil
}

func (s *CategoryService) Update(ctx context.Context, a *policy.Access, in CategoryInput) (*models.Category, error) {
	if err := requireAccess(a); err != nil {
		return nil, err
	}
	if err := in.validate(false); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if len(updates) > 0 {
		res := narrow(s.db.WithContext(ctx).Model(&models.Category{}), a).Updates(updates)
		if err := affected(res, policy.LabelCategory); err != nil {
			return nil, err
		}
	}
	var c models.Category
	if err := s.db.WithContext(ctx).Take(&c, "id = ?", a.Resource.ID).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("reload category %s: %w", a.Resource.ID, err))
	}
	return &c, nil
}

// Delete removes the category; its products become uncategorized.
func (s *CategoryService) Delete(ctx context.Context, a *policy.Access) error {
	if err := requireAccess(a); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Product{}).Where("category_id = ?", a.Resource.ID).Update("category_id", nil).Error
		if err != nil {
			return apperr.Internal(fmt.Errorf("uncategorize products: %w", err))
		}
		return affected(narrow(tx.Model(&models.Category{}), a).Delete(&models.Category{}), policy.LabelCategory)
	})
}
