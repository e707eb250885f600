package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gartstein/ledger/internal/ledger/models"
)

// TestContractOverviews checks the flattened join resolves names and carries
// the derived fields.
func TestContractOverviews(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	f := newFixture(t, repo)
	contract := f.newContract(t, repo, "C-001")

	addMilestone(t, repo, contract.ID, 1, "500.00", "0")
	require.NoError(t, repo.RecomputeTotal(ctx, contract.ID))

	rows, err := repo.ContractOverviews(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "C-001", row.Number)
	assert.Equal(t, "Customer LLC", row.Customer)
	assert.Equal(t, "Contractor LLC", row.Contractor)
	assert.Equal(t, "supply", row.Type)
	assert.Nil(t, row.Stage, "contract has no stage yet")
	assert.False(t, row.VatPercent.Valid, "contract has no VAT rate")
	assert.True(t, row.TotalAmount.Equal(dec(t, "500.00")))
	assert.True(t, row.DebtAmount.Equal(dec(t, "500.00")))
}

// TestContractDetailRows verifies the milestone×payment cardinality: the two
// sides join independently against the contract, so 2 milestones and 3
// payments yield 6 rows.
func TestContractDetailRows(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	f := newFixture(t, repo)
	contract := f.newContract(t, repo, "C-001")

	addMilestone(t, repo, contract.ID, 1, "100.00", "0")
	addMilestone(t, repo, contract.ID, 2, "200.00", "0")
	for i := 0; i < 3; i++ {
		addPayment(t, repo, f, contract.ID, "50.00")
	}

	rows, err := repo.ContractDetailRows(ctx, contract.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 6, "2 milestones x 3 payments should yield 6 rows")

	// A contract with no children still yields its own single row.
	empty := f.newContract(t, repo, "C-002")
	rows, err = repo.ContractDetailRows(ctx, empty.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].MilestoneNo)
	assert.False(t, rows[0].PaymentID.Valid)
}

// TestDebtorsOver filters contracts by debt threshold.
func TestDebtorsOver(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	f := newFixture(t, repo)

	small := f.newContract(t, repo, "C-SMALL")
	addMilestone(t, repo, small.ID, 1, "100.00", "0")
	require.NoError(t, repo.RecomputeTotal(ctx, small.ID))

	large := f.newContract(t, repo, "C-LARGE")
	addMilestone(t, repo, large.ID, 1, "90000.00", "0")
	require.NoError(t, repo.RecomputeTotal(ctx, large.ID))

	debtors, err := repo.DebtorsOver(ctx, dec(t, "1000.00"))
	require.NoError(t, err)
	require.Len(t, debtors, 1, "only the large contract exceeds the threshold")
	assert.Equal(t, large.ID, debtors[0].ID)
}

// TestMilestoneSummaries checks per-contract milestone aggregates.
func TestMilestoneSummaries(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	f := newFixture(t, repo)
	contract := f.newContract(t, repo, "C-001")

	addMilestone(t, repo, contract.ID, 1, "50000.00", "10000.00")
	addMilestone(t, repo, contract.ID, 2, "70000.00", "5000.00")

	rows, err := repo.MilestoneSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, contract.ID, rows[0].ContractID)
	assert.EqualValues(t, 2, rows[0].MilestoneCount)
	assert.True(t, rows[0].AmountSum.Equal(dec(t, "120000.00")))
	assert.True(t, rows[0].AdvanceSum.Equal(dec(t, "15000.00")))
}

// TestPaymentSummaries checks per-contract payment aggregates and the
// zero-sum exclusion.
func TestPaymentSummaries(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	f := newFixture(t, repo)

	paidFor := f.newContract(t, repo, "C-PAID")
	first := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{
		ID: uuid.New(), ContractID: paidFor.ID, PaidAt: first,
		Amount: dec(t, "100.00"), MethodID: f.method.ID,
	}))
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{
		ID: uuid.New(), ContractID: paidFor.ID, PaidAt: last,
		Amount: dec(t, "200.00"), MethodID: f.method.ID,
	}))

	// A contract without payments must not appear at all.
	f.newContract(t, repo, "C-UNPAID")

	rows, err := repo.PaymentSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1, "contracts with zero payment sum are excluded")
	assert.Equal(t, paidFor.ID, rows[0].ContractID)
	assert.EqualValues(t, 2, rows[0].PaymentCount)
	assert.True(t, rows[0].AmountSum.Equal(dec(t, "300.00")))
	assert.Equal(t, last.Format("2006-01-02"), rows[0].LastPaidAt.Format("2006-01-02"))
}
