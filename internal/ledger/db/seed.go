package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	"github.com/gartstein/ledger/internal/ledger/models"
)

// SeedReferenceData inserts the baseline lookup rows. It is idempotent:
// existing rows (matched by name) are left untouched.
func (r *Repository) SeedReferenceData(ctx context.Context) error {
	types := []models.ContractType{
		{ID: uuid.New(), Name: "supply"},
		{ID: uuid.New(), Name: "services"},
		{ID: uuid.New(), Name: "construction"},
	}
	stages := []models.ExecutionStage{
		{ID: uuid.New(), Name: "design"},
		{ID: uuid.New(), Name: "execution"},
		{ID: uuid.New(), Name: "acceptance"},
	}
	methods := []models.PaymentMethod{
		{ID: uuid.New(), Name: "wire transfer"},
		{ID: uuid.New(), Name: "cash"},
		{ID: uuid.New(), Name: "card"},
	}

	onNameConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}
	if err := r.db.WithContext(ctx).Clauses(onNameConflict).Create(&types).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Clauses(onNameConflict).Create(&stages).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Clauses(onNameConflict).Create(&methods).Error; err != nil {
		return err
	}

	for _, percent := range []string{"0", "10", "20"} {
		rate := models.VatRate{ID: uuid.New(), Percent: decimal.RequireFromString(percent)}
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.VatRate{}).
			Where("percent = ?", rate.Percent).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := r.db.WithContext(ctx).Create(&rate).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
