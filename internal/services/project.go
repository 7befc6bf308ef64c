package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
	"github.com/diewo77/stockroom/validation"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

// ProjectInput is the body of create and update requests. On update, nil
// fields are unchanged.
type ProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (in ProjectInput) validate(create bool) error {
	v := make(validation.Violations)
	if in.Name != nil || create {
		name := ""
		if in.Name != nil {
			name = *in.Name
		}
		validation.Required("name", name, v)
		validation.MaxLen("name", name, 255, v)
	}
	return v.Err()
}

func (s *ProjectService) List(ctx context.Context, sub *ownership.Subject, p ListParams) (*Page[models.Project], error) {
	p = p.normalized()
	q := like(s.db.WithContext(ctx).Model(&models.Project{}).Scopes(policy.OwnedBy(sub)), p.Query, "name")

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("count projects: %w", err))
	}
	items := []models.Project{}
	if err := q.Order("name").Limit(p.Limit).Offset(p.offset()).Find(&items).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("list projects: %w", err))
	}
	return &Page[models.Project]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// Get returns a project with its products.
func (s *ProjectService) Get(ctx context.Context, sub *ownership.Subject, id string) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Scopes(policy.Scope(policy.BuildOwnershipWhere(sub, policy.Conditions{"id": id}))).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Project not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get project %s: %w", id, err))
	}
	return &p, nil
}

func (s *ProjectService) Create(ctx context.Context, sub *ownership.Subject, in ProjectInput) (*models.Project, error) {
	if err := requireCreator(sub); err != nil {
		return nil, err
	}
	if err := in.validate(true); err != nil {
		return nil, err
	}
	owner := sub.ID
	p := models.Project{UserID: &owner, Name: strings.TrimSpace(*in.Name)}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("create project: %w", err))
	}
	return &p, nil
}

func (s *ProjectService) Update(ctx context.Context, a *policy.Access, in ProjectInput) (*models.Project, error) {
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
		res := narrow(s.db.WithContext(ctx).Model(&models.Project{}), a).Updates(updates)
		if err := affected(res, policy.LabelProject); err != nil {
			return nil, err
		}
	}
	var p models.Project
	if err := s.db.WithContext(ctx).Take(&p, "id = ?", a.Resource.ID).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("reload project %s: %w", a.Resource.ID, err))
	}
	return &p, nil
}

func (s *ProjectService) Delete(ctx context.Context, a *policy.Access) error {
	if err := requireAccess(a); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM project_products WHERE project_id = ?", a.Resource.ID).Error; err != nil {
			return apperr.Internal(fmt.Errorf("unlink project %s: %w", a.Resource.ID, err))
		}
		return affected(narrow(tx.Model(&models.Project{}), a).Delete(&models.Project{}), policy.LabelProject)
	})
}

// AttachProduct links a product to the project approved by a. The subject
// must also be allowed to edit the product.
func (s *ProjectService) AttachProduct(ctx context.Context, a *policy.Access, productID string) error {
	if err := requireAccess(a); err != nil {
		return err
	}
	if strings.TrimSpace(productID) == "" {
		return apperr.BadRequest("productId is required")
	}
	product, err := s.productRecord(ctx, productID)
	if err != nil {
		return err
	}
	if !ownership.CanEdit(a.Subject, product) {
		return apperr.Forbidden("You don't have permission to modify this product")
	}
	link := map[string]any{"project_id": a.Resource.ID, "product_id": productID}
	err = s.db.WithContext(ctx).Table("project_products").Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error
	if err != nil {
		return apperr.Internal(fmt.Errorf("attach product %s to project %s: %w", productID, a.Resource.ID, err))
	}
	return nil
}

// DetachProduct removes a link. Only the project is checked: removing a
// product from one's own project does not modify the product.
func (s *ProjectService) DetachProduct(ctx context.Context, a *policy.Access, productID string) error {
	if err := requireAccess(a); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Exec(
		"DELETE FROM project_products WHERE project_id = ? AND product_id = ?", a.Resource.ID, productID)
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("detach product %s: %w", productID, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Product is not in this project")
	}
	return nil
}

func (s *ProjectService) productRecord(ctx context.Context, id string) (*ownership.Record, error) {
	rec, err := policy.FetchOwner("products")(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("fetch product %s: %w", id, err))
	}
	if rec == nil {
		return nil, apperr.NotFound("Product not found")
	}
	return rec, nil
}
