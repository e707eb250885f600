package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	e "github.com/gartstein/ledger/internal/ledger/errors"
	"github.com/gartstein/ledger/internal/ledger/models"
)

func (r *Repository) CreateContract(ctx context.Context, contract *models.Contract) error {
	result := r.db.WithContext(ctx).Create(contract)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateContract
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	result := r.db.WithContext(ctx).First(&contract, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &contract, nil
}

func (r *Repository) ContractExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("id = ?", id).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// ContractNumberTaken reports whether the customer already has a contract
// with this number. The same number may be reused across different customers.
func (r *Repository) ContractNumberTaken(ctx context.Context, number string, customerID uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("number = ? AND customer_id = ?", number, customerID).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// UpdateContract applies a partial update to a contract's static attributes.
// The derived monetary fields are owned by the recompute engine and cannot be
// touched here.
func (r *Repository) UpdateContract(ctx context.Context, update *models.ContractUpdate) error {
	fields := map[string]interface{}{}
	if update.Number != nil {
		fields["number"] = *update.Number
	}
	if update.StageID != nil {
		if *update.StageID == uuid.Nil {
			fields["stage_id"] = nil
		} else {
			fields["stage_id"] = *update.StageID
		}
	}
	if update.VatRateID != nil {
		if *update.VatRateID == uuid.Nil {
			fields["vat_rate_id"] = nil
		} else {
			fields["vat_rate_id"] = *update.VatRateID
		}
	}
	if update.SignedAt != nil {
		fields["signed_at"] = *update.SignedAt
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("id = ?", update.ID).
		Updates(fields)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateContract
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteContractRow removes only the contract row itself. Cascading to the
// contract's milestones and payments is the service layer's responsibility,
// inside the same transaction.
func (r *Repository) DeleteContractRow(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Contract{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}
