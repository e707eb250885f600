package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gartstein/ledger/internal/ledger/models"
)

// Recompute engine. RecomputeTotal and RecomputePaid re-derive a contract's
// monetary fields from its current children:
//
//	total_amount = sum(milestone.amount)
//	paid_amount  = sum(payment.amount)
//	debt_amount  = max(total_amount - paid_amount, 0)
//
// Both operations are idempotent and silently no-op when the contract does
// not exist: during a contract's cascade delete the recompute fires after the
// parent row is already gone, and that is expected, not an error.
//
// Each operation scans only the child collection it owns, so a milestone
// change never touches payments and vice versa. Summation is done in exact
// decimal arithmetic; float accumulation is never used for money.

// RecomputeTotal re-derives total_amount from the contract's milestones and
// refreshes debt_amount against the current paid_amount.
func (r *Repository) RecomputeTotal(ctx context.Context, contractID uuid.UUID) error {
	contract, err := r.lockContract(ctx, contractID)
	if err != nil {
		return err
	}
	if contract == nil {
		return nil
	}

	total, err := r.sumChildAmounts(ctx, &models.Milestone{}, contractID)
	if err != nil {
		return err
	}

	return r.writeDerived(ctx, contractID, map[string]interface{}{
		"total_amount": total,
		"debt_amount":  clampDebt(total, contract.PaidAmount),
	})
}

// RecomputePaid re-derives paid_amount from the contract's payments and
// refreshes debt_amount against the current total_amount.
func (r *Repository) RecomputePaid(ctx context.Context, contractID uuid.UUID) error {
	contract, err := r.lockContract(ctx, contractID)
	if err != nil {
		return err
	}
	if contract == nil {
		return nil
	}

	paid, err := r.sumChildAmounts(ctx, &models.Payment{}, contractID)
	if err != nil {
		return err
	}

	return r.writeDerived(ctx, contractID, map[string]interface{}{
		"paid_amount": paid,
		"debt_amount": clampDebt(contract.TotalAmount, paid),
	})
}

// lockContract loads the contract row, holding a row lock on dialects that
// support it so that two concurrent recomputes of the same contract cannot
// interleave their read-sum-write cycles. A nil contract with nil error means
// the row is gone and the recompute must degrade to a no-op.
func (r *Repository) lockContract(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	q := r.db.WithContext(ctx)
	// sqlite serializes writers on its own and rejects FOR UPDATE.
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var contract models.Contract
	result := q.First(&contract, "id = ?", contractID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &contract, nil
}

// sumChildAmounts plucks the amount column of one child collection and sums
// it in decimal arithmetic. An empty collection sums to zero.
func (r *Repository) sumChildAmounts(ctx context.Context, model interface{}, contractID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	result := r.db.WithContext(ctx).Model(model).
		Where("contract_id = ?", contractID).
		Pluck("amount", &amounts)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}

	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum, nil
}

func (r *Repository) writeDerived(ctx context.Context, contractID uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("id = ?", contractID).
		Updates(fields)
	return result.Error
}

// clampDebt returns total-paid floored at zero. Overpayment never shows as
// negative debt; it is observable only as paid_amount exceeding total_amount.
func clampDebt(total, paid decimal.Decimal) decimal.Decimal {
	debt := total.Sub(paid)
	if debt.IsNegative() {
		return decimal.Zero
	}
	return debt
}
