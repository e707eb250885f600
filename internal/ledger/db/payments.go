package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	e "github.com/gartstein/ledger/internal/ledger/errors"
	"github.com/gartstein/ledger/internal/ledger/models"
)

func (r *Repository) CreatePayment(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	result := r.db.WithContext(ctx).First(&p, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &p, nil
}

// ListPayments returns the contract's payments ordered by payment date.
func (r *Repository) ListPayments(ctx context.Context, contractID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	result := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("paid_at").
		Find(&payments)
	return payments, result.Error
}

// UpdatePayment applies a partial update. A non-nil ContractID moves the
// payment to another contract; the caller must recompute both contracts
// afterwards.
func (r *Repository) UpdatePayment(ctx context.Context, update *models.PaymentUpdate) error {
	fields := map[string]interface{}{}
	if update.ContractID != nil {
		fields["contract_id"] = *update.ContractID
	}
	if update.PaidAt != nil {
		fields["paid_at"] = *update.PaidAt
	}
	if update.Amount != nil {
		fields["amount"] = *update.Amount
	}
	if update.MethodID != nil {
		fields["method_id"] = *update.MethodID
	}
	if update.DocNumber != nil {
		fields["doc_number"] = *update.DocNumber
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", update.ID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Payment{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeletePaymentsByContract removes all payments of a contract as part of the
// contract's cascade delete.
func (r *Repository) DeletePaymentsByContract(ctx context.Context, contractID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.Payment{}, "contract_id = ?", contractID).Error
}
