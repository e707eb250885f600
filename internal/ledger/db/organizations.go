package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	e "github.com/gartstein/ledger/internal/ledger/errors"
	"github.com/gartstein/ledger/internal/ledger/models"
)

func (r *Repository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	result := r.db.WithContext(ctx).Create(org)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrValidation
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	result := r.db.WithContext(ctx).First(&org, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &org, nil
}

func (r *Repository) OrganizationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", id).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// OrganizationExistsByTaxID reports whether the tax identifier is already
// registered.
func (r *Repository) OrganizationExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Organization{}).
		Where("tax_id = ?", taxID).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// DeleteOrganization removes an organization. Deletion is restricted while
// any contract references it as customer or contractor.
func (r *Repository) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("customer_id = ? OR contractor_id = ?", id, id).
		Limit(1).
		Count(&count)
	if result.Error != nil {
		return result.Error
	}
	if count > 0 {
		return e.ErrReferential
	}

	result = r.db.WithContext(ctx).Delete(&models.Organization{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}
