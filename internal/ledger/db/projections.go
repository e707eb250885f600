package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gartstein/ledger/internal/ledger/models"
)

// Read projections. These are reporting views over the ledger; they contain
// no mutation logic and no consistency responsibility of their own — they
// consume the derived fields the recompute engine maintains.

// ContractOverview is a flattened contract row with the referenced names
// resolved.
type ContractOverview struct {
	ID          uuid.UUID
	Number      string
	Customer    string
	Contractor  string
	Type        string
	Stage       *string
	VatPercent  decimal.NullDecimal
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	DebtAmount  decimal.Decimal
}

// ContractDetailRow is one milestone×payment combination of a contract. The
// milestone and payment sides are joined independently against the contract,
// not against each other, so a contract with M milestones and P payments
// yields M×P rows (or M, or P, when one side is empty).
type ContractDetailRow struct {
	ContractID      uuid.UUID
	Number          string
	MilestoneNo     *int
	MilestoneAmount decimal.NullDecimal
	Advance         decimal.NullDecimal
	PaymentID       uuid.NullUUID
	PaidAt          *time.Time
	PaymentAmount   decimal.NullDecimal
}

// MilestoneSummary aggregates a contract's milestones.
type MilestoneSummary struct {
	ContractID     uuid.UUID
	MilestoneCount int64
	AmountSum      decimal.Decimal
	AdvanceSum     decimal.Decimal
}

// PaymentSummary aggregates a contract's payments. Contracts whose payment
// sum is zero are excluded.
type PaymentSummary struct {
	ContractID   uuid.UUID
	PaymentCount int64
	AmountSum    decimal.Decimal
	LastPaidAt   time.Time
}

func (r *Repository) ContractOverviews(ctx context.Context) ([]ContractOverview, error) {
	var rows []ContractOverview
	result := r.db.WithContext(ctx).Raw(`
		SELECT c.id, c.number,
		       cust.name AS customer, cont.name AS contractor,
		       ct.name AS type, es.name AS stage, vr.percent AS vat_percent,
		       c.total_amount, c.paid_amount, c.debt_amount
		FROM contracts c
		JOIN organizations cust ON cust.id = c.customer_id
		JOIN organizations cont ON cont.id = c.contractor_id
		JOIN contract_types ct ON ct.id = c.type_id
		LEFT JOIN execution_stages es ON es.id = c.stage_id
		LEFT JOIN vat_rates vr ON vr.id = c.vat_rate_id
		ORDER BY c.number`).Scan(&rows)
	return rows, result.Error
}

func (r *Repository) ContractDetailRows(ctx context.Context, contractID uuid.UUID) ([]ContractDetailRow, error) {
	var rows []ContractDetailRow
	result := r.db.WithContext(ctx).Raw(`
		SELECT c.id AS contract_id, c.number,
		       m.no AS milestone_no, m.amount AS milestone_amount, m.advance,
		       p.id AS payment_id, p.paid_at, p.amount AS payment_amount
		FROM contracts c
		LEFT JOIN milestones m ON m.contract_id = c.id
		LEFT JOIN payments p ON p.contract_id = c.id
		WHERE c.id = ?
		ORDER BY m.no, p.paid_at`, contractID).Scan(&rows)
	return rows, result.Error
}

// DebtorsOver lists contracts whose debt exceeds the threshold.
func (r *Repository) DebtorsOver(ctx context.Context, threshold decimal.Decimal) ([]models.Contract, error) {
	var contracts []models.Contract
	result := r.db.WithContext(ctx).
		Where("debt_amount > ?", threshold).
		Order("debt_amount DESC").
		Find(&contracts)
	return contracts, result.Error
}

func (r *Repository) MilestoneSummaries(ctx context.Context) ([]MilestoneSummary, error) {
	var rows []MilestoneSummary
	result := r.db.WithContext(ctx).Raw(`
		SELECT contract_id,
		       COUNT(*) AS milestone_count,
		       SUM(amount) AS amount_sum,
		       SUM(advance) AS advance_sum
		FROM milestones
		GROUP BY contract_id`).Scan(&rows)
	return rows, result.Error
}

func (r *Repository) PaymentSummaries(ctx context.Context) ([]PaymentSummary, error) {
	var rows []PaymentSummary
	result := r.db.WithContext(ctx).Raw(`
		SELECT contract_id,
		       COUNT(*) AS payment_count,
		       SUM(amount) AS amount_sum,
		       MAX(paid_at) AS last_paid_at
		FROM payments
		GROUP BY contract_id
		HAVING SUM(amount) > 0`).Scan(&rows)
	return rows, result.Error
}
