package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	e "github.com/gartstein/ledger/internal/ledger/errors"
	"github.com/gartstein/ledger/internal/ledger/models"
)

func (r *Repository) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	result := r.db.WithContext(ctx).Create(m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrValidation
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetMilestone(ctx context.Context, contractID uuid.UUID, no int) (*models.Milestone, error) {
	var m models.Milestone
	result := r.db.WithContext(ctx).
		First(&m, "contract_id = ? AND no = ?", contractID, no)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &m, nil
}

// ListMilestones returns the contract's milestones ordered by sequence
// number.
func (r *Repository) ListMilestones(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	result := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("no").
		Find(&milestones)
	return milestones, result.Error
}

// UpdateMilestone applies a partial update to the milestone identified by
// (ContractID, No). A non-nil NewContractID moves the milestone to another
// contract; the caller must recompute both contracts afterwards.
func (r *Repository) UpdateMilestone(ctx context.Context, update *models.MilestoneUpdate) error {
	fields := map[string]interface{}{}
	if update.NewContractID != nil {
		fields["contract_id"] = *update.NewContractID
	}
	if update.DueDate != nil {
		fields["due_date"] = *update.DueDate
	}
	if update.StageID != nil {
		if *update.StageID == uuid.Nil {
			fields["stage_id"] = nil
		} else {
			fields["stage_id"] = *update.StageID
		}
	}
	if update.Amount != nil {
		fields["amount"] = *update.Amount
	}
	if update.Advance != nil {
		fields["advance"] = *update.Advance
	}
	if update.Subject != nil {
		fields["subject"] = *update.Subject
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.Milestone{}).
		Where("contract_id = ? AND no = ?", update.ContractID, update.No).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteMilestone(ctx context.Context, contractID uuid.UUID, no int) error {
	result := r.db.WithContext(ctx).
		Delete(&models.Milestone{}, "contract_id = ? AND no = ?", contractID, no)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteMilestonesByContract removes all milestones of a contract as part of
// the contract's cascade delete.
func (r *Repository) DeleteMilestonesByContract(ctx context.Context, contractID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.Milestone{}, "contract_id = ?", contractID).Error
}
