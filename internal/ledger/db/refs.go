package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	e "github.com/gartstein/ledger/internal/ledger/errors"
	"github.com/gartstein/ledger/internal/ledger/models"
)

// Reference-data access. Contract types and payment methods are restricted
// while referenced; execution stages and VAT rates are cleared from the rows
// that reference them when deleted.

func (r *Repository) CreateContractType(ctx context.Context, ct *models.ContractType) error {
	return r.db.WithContext(ctx).Create(ct).Error
}

func (r *Repository) CreateExecutionStage(ctx context.Context, st *models.ExecutionStage) error {
	return r.db.WithContext(ctx).Create(st).Error
}

func (r *Repository) CreateVatRate(ctx context.Context, vr *models.VatRate) error {
	return r.db.WithContext(ctx).Create(vr).Error
}

func (r *Repository) CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	return r.db.WithContext(ctx).Create(pm).Error
}

func (r *Repository) ContractTypeExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.rowExists(ctx, &models.ContractType{}, id)
}

func (r *Repository) ExecutionStageExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.rowExists(ctx, &models.ExecutionStage{}, id)
}

func (r *Repository) VatRateExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.rowExists(ctx, &models.VatRate{}, id)
}

func (r *Repository) PaymentMethodExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.rowExists(ctx, &models.PaymentMethod{}, id)
}

func (r *Repository) rowExists(ctx context.Context, model interface{}, id uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(model).
		Where("id = ?", id).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// DeleteContractType removes a contract type; restricted while any contract
// references it.
func (r *Repository) DeleteContractType(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("type_id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return e.ErrReferential
	}
	return r.deleteRefRow(ctx, &models.ContractType{}, id)
}

// DeleteExecutionStage removes a stage, first clearing it from contracts and
// milestones that reference it.
func (r *Repository) DeleteExecutionStage(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("stage_id = ?", id).Update("stage_id", nil).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Model(&models.Milestone{}).
		Where("stage_id = ?", id).Update("stage_id", nil).Error; err != nil {
		return err
	}
	return r.deleteRefRow(ctx, &models.ExecutionStage{}, id)
}

// DeleteVatRate removes a VAT rate, first clearing it from contracts that
// reference it.
func (r *Repository) DeleteVatRate(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("vat_rate_id = ?", id).Update("vat_rate_id", nil).Error; err != nil {
		return err
	}
	return r.deleteRefRow(ctx, &models.VatRate{}, id)
}

// DeletePaymentMethod removes a payment method; restricted while any payment
// references it.
func (r *Repository) DeletePaymentMethod(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("method_id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return e.ErrReferential
	}
	return r.deleteRefRow(ctx, &models.PaymentMethod{}, id)
}

func (r *Repository) deleteRefRow(ctx context.Context, model interface{}, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return e.ErrReferential
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}
