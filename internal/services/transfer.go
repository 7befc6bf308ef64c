package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/policy"
)

// OwnershipService is the only code path that changes user_id.
type OwnershipService struct {
	db *gorm.DB
}

func NewOwnershipService(db *gorm.DB) *OwnershipService {
	return &OwnershipService{db: db}
}

var transferTables = map[string]any{
	policy.LabelProduct:  &models.Product{},
	policy.LabelProject:  &models.Project{},
	policy.LabelCategory: &models.Category{},
}

// Transfer gives the resource approved by a to newOwner, or orphans it when
// newOwner is nil. Admins only.
func (s *OwnershipService) Transfer(ctx context.Context, a *policy.Access, label string, newOwner *string) error {
	if err := requireAccess(a); err != nil {
		return err
	}
	if !ownership.IsAdmin(a.Subject) {
		return apperr.Forbidden("admin role required")
	}
	model, ok := transferTables[label]
	if !ok {
		return apperr.BadRequest(fmt.Sprintf("unknown resource type %q", label))
	}

	var owner any
	if newOwner != nil {
		if *newOwner == "" {
			return apperr.BadRequest("userId must not be empty")
		}
		err := s.db.WithContext(ctx).Take(&models.User{}, "id = ?", *newOwner).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.BadRequest("unknown user")
		}
		if err != nil {
			return apperr.Internal(fmt.Errorf("lookup user %s: %w", *newOwner, err))
		}
		owner = *newOwner
	}

	res := s.db.WithContext(ctx).Model(model).Where("id = ?", a.Resource.ID).Update(policy.OwnerColumn, owner)
	if err := affected(res, label); err != nil {
		return err
	}

	from, to := "", ""
	if a.Resource.UserID != nil {
		from = *a.Resource.UserID
	}
	if newOwner != nil {
		to = *newOwner
	}
	slog.InfoContext(ctx, "ownership transferred",
		"admin", a.Subject.ID, "resource", label, "id", a.Resource.ID, "from", from, "to", to)
	return nil
}
