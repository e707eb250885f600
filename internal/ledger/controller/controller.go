// Package controller implements the business logic for the contract ledger.
// Every mutating operation on milestones or payments runs together with the
// corresponding recompute call inside one transaction, so callers always
// observe a contract whose derived monetary fields match its children.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gartstein/ledger/internal/ledger/db"
	e "github.com/gartstein/ledger/internal/ledger/errors"
	"github.com/gartstein/ledger/internal/ledger/events"
	"github.com/gartstein/ledger/internal/ledger/models"
)

type EventProducer interface {
	Produce(eventType events.EventType, contract *models.Contract)
}

// Repository defines the storage interface the service needs. It is satisfied
// by *db.Repository; the transaction closure hands back a repository bound to
// the transaction so the mutation and its recompute commit together.
type Repository interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	OrganizationExists(ctx context.Context, id uuid.UUID) (bool, error)
	OrganizationExistsByTaxID(ctx context.Context, taxID string) (bool, error)
	DeleteOrganization(ctx context.Context, id uuid.UUID) error

	CreateVatRate(ctx context.Context, vr *models.VatRate) error
	ContractTypeExists(ctx context.Context, id uuid.UUID) (bool, error)
	ExecutionStageExists(ctx context.Context, id uuid.UUID) (bool, error)
	VatRateExists(ctx context.Context, id uuid.UUID) (bool, error)
	PaymentMethodExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreateContract(ctx context.Context, contract *models.Contract) error
	GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ContractExists(ctx context.Context, id uuid.UUID) (bool, error)
	ContractNumberTaken(ctx context.Context, number string, customerID uuid.UUID) (bool, error)
	UpdateContract(ctx context.Context, update *models.ContractUpdate) error

	GetMilestone(ctx context.Context, contractID uuid.UUID, no int) (*models.Milestone, error)
	ListMilestones(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, contractID uuid.UUID) ([]models.Payment, error)

	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

// LedgerService manages organizations, contracts, milestones and payments,
// binding each child mutation to its recompute call.
type LedgerService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

// NewLedgerService constructs a LedgerService with a repository, an event
// producer, and a logger.
func NewLedgerService(repo Repository, producer EventProducer, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("ledger_service"),
	}
}

// CreateOrganization registers a legal entity after checking the tax
// identifier is present and not already registered.
func (s *LedgerService) CreateOrganization(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	if org.Name == "" {
		return nil, fmt.Errorf("%w: organization name required", e.ErrValidation)
	}
	if org.TaxID == "" {
		return nil, fmt.Errorf("%w: tax identifier required", e.ErrValidation)
	}

	exists, err := s.repo.OrganizationExistsByTaxID(ctx, org.TaxID)
	if err != nil {
		return nil, fmt.Errorf("failed to check tax id: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: tax identifier already registered", e.ErrValidation)
	}

	org.ID = uuid.New()
	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, nil
}

// DeleteOrganization removes an organization; rejected with ErrReferential
// while any contract still references it.
func (s *LedgerService) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteOrganization(ctx, id)
}

// CreateVatRate registers a VAT rate. The percent must lie within 0-100.
func (s *LedgerService) CreateVatRate(ctx context.Context, percent decimal.Decimal) (*models.VatRate, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: VAT percent must be within 0-100", e.ErrValidation)
	}
	rate := &models.VatRate{ID: uuid.New(), Percent: percent}
	if err := s.repo.CreateVatRate(ctx, rate); err != nil {
		return nil, fmt.Errorf("failed to create VAT rate: %w", err)
	}
	return rate, nil
}

// CreateContract adds a contract after validating its references and the
// (number, customer) uniqueness rule. The derived fields start at zero.
func (s *LedgerService) CreateContract(ctx context.Context, contract *models.Contract) (*models.Contract, error) {
	if contract.Number == "" {
		return nil, fmt.Errorf("%w: contract number required", e.ErrValidation)
	}
	if err := s.checkContractRefs(ctx, contract); err != nil {
		return nil, err
	}

	taken, err := s.repo.ContractNumberTaken(ctx, contract.Number, contract.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check contract number: %w", err)
	}
	if taken {
		return nil, e.ErrDuplicateContract
	}

	contract.ID = uuid.New()
	contract.TotalAmount = decimal.Zero
	contract.PaidAmount = decimal.Zero
	contract.DebtAmount = decimal.Zero
	if err := s.repo.CreateContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}
	go func() {
		s.producer.Produce(events.ContractCreated, contract)
	}()
	return contract, nil
}

func (s *LedgerService) checkContractRefs(ctx context.Context, contract *models.Contract) error {
	for _, ref := range []struct {
		id   uuid.UUID
		name string
	}{
		{contract.CustomerID, "customer organization"},
		{contract.ContractorID, "contractor organization"},
	} {
		exists, err := s.repo.OrganizationExists(ctx, ref.id)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", ref.name, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s %s", e.ErrReferential, ref.name, ref.id)
		}
	}

	exists, err := s.repo.ContractTypeExists(ctx, contract.TypeID)
	if err != nil {
		return fmt.Errorf("failed to check contract type: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: contract type %s", e.ErrReferential, contract.TypeID)
	}

	if contract.StageID != nil {
		exists, err := s.repo.ExecutionStageExists(ctx, *contract.StageID)
		if err != nil {
			return fmt.Errorf("failed to check execution stage: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: execution stage %s", e.ErrReferential, *contract.StageID)
		}
	}
	if contract.VatRateID != nil {
		exists, err := s.repo.VatRateExists(ctx, *contract.VatRateID)
		if err != nil {
			return fmt.Errorf("failed to check VAT rate: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: VAT rate %s", e.ErrReferential, *contract.VatRateID)
		}
	}
	return nil
}

// GetContract retrieves a contract by ID, returning ErrNotFound if missing.
func (s *LedgerService) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.repo.GetContract(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return contract, nil
}

// UpdateContract modifies a contract's static attributes. Changing the number
// re-checks uniqueness against the contract's customer; stage and VAT
// references are validated when set.
func (s *LedgerService) UpdateContract(ctx context.Context, update *models.ContractUpdate) (*models.Contract, error) {
	current, err := s.repo.GetContract(ctx, update.ID)
	if err != nil {
		return nil, err
	}

	if update.Number != nil && *update.Number != current.Number {
		if *update.Number == "" {
			return nil, fmt.Errorf("%w: contract number required", e.ErrValidation)
		}
		taken, err := s.repo.ContractNumberTaken(ctx, *update.Number, current.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to check contract number: %w", err)
		}
		if taken {
			return nil, e.ErrDuplicateContract
		}
	}
	if update.StageID != nil && *update.StageID != uuid.Nil {
		exists, err := s.repo.ExecutionStageExists(ctx, *update.StageID)
		if err != nil {
			return nil, fmt.Errorf("failed to check execution stage: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: execution stage %s", e.ErrReferential, *update.StageID)
		}
	}
	if update.VatRateID != nil && *update.VatRateID != uuid.Nil {
		exists, err := s.repo.VatRateExists(ctx, *update.VatRateID)
		if err != nil {
			return nil, fmt.Errorf("failed to check VAT rate: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: VAT rate %s", e.ErrReferential, *update.VatRateID)
		}
	}

	if err := s.repo.UpdateContract(ctx, update); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetContract(ctx, update.ID)
	if err != nil {
		s.logger.Error("Failed to get contract for event",
			zap.Error(err),
			zap.String("contract_id", update.ID.String()),
		)
		return nil, err
	}
	go func() {
		s.producer.Produce(events.ContractUpdated, updated)
	}()
	return updated, nil
}

// DeleteContract removes a contract and cascades to all its milestones and
// payments in one transaction. The recompute calls fired by the cascade find
// the contract row already gone and degrade to no-ops.
func (s *LedgerService) DeleteContract(ctx context.Context, id uuid.UUID) error {
	snapshot, err := s.repo.GetContract(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to get contract for deletion: %w", err)
	}

	err = s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := tx.DeleteContractRow(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteMilestonesByContract(ctx, id); err != nil {
			return err
		}
		if err := tx.DeletePaymentsByContract(ctx, id); err != nil {
			return err
		}
		// The parent row is gone; both calls are expected no-ops.
		if err := tx.RecomputeTotal(ctx, id); err != nil {
			return err
		}
		return tx.RecomputePaid(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete contract: %w", err)
	}

	go func() {
		s.producer.Produce(events.ContractDeleted, snapshot)
	}()
	return nil
}

// CreateMilestone adds a planned payment obligation and recomputes the
// contract's total in the same transaction.
func (s *LedgerService) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	if m.No <= 0 {
		return fmt.Errorf("%w: milestone number must be positive", e.ErrValidation)
	}
	if m.Amount.IsNegative() {
		return fmt.Errorf("%w: milestone amount must not be negative", e.ErrValidation)
	}
	if m.Advance.IsNegative() {
		return fmt.Errorf("%w: milestone advance must not be negative", e.ErrValidation)
	}
	if err := s.checkContractExists(ctx, m.ContractID); err != nil {
		return err
	}
	if m.StageID != nil {
		exists, err := s.repo.ExecutionStageExists(ctx, *m.StageID)
		if err != nil {
			return fmt.Errorf("failed to check execution stage: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: execution stage %s", e.ErrReferential, *m.StageID)
		}
	}

	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := tx.CreateMilestone(ctx, m); err != nil {
			return err
		}
		return tx.RecomputeTotal(ctx, m.ContractID)
	})
	if err != nil {
		return fmt.Errorf("failed to create milestone: %w", err)
	}

	s.produceRecomputed(ctx, m.ContractID)
	return nil
}

// UpdateMilestone modifies a milestone. When the update moves the milestone
// to another contract, both the old and the new contract are recomputed in
// the same transaction as the move.
func (s *LedgerService) UpdateMilestone(ctx context.Context, update *models.MilestoneUpdate) error {
	if update.Amount != nil && update.Amount.IsNegative() {
		return fmt.Errorf("%w: milestone amount must not be negative", e.ErrValidation)
	}
	if update.Advance != nil && update.Advance.IsNegative() {
		return fmt.Errorf("%w: milestone advance must not be negative", e.ErrValidation)
	}
	if update.StageID != nil && *update.StageID != uuid.Nil {
		exists, err := s.repo.ExecutionStageExists(ctx, *update.StageID)
		if err != nil {
			return fmt.Errorf("failed to check execution stage: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: execution stage %s", e.ErrReferential, *update.StageID)
		}
	}
	reparented := update.NewContractID != nil && *update.NewContractID != update.ContractID
	if reparented {
		if err := s.checkContractExists(ctx, *update.NewContractID); err != nil {
			return err
		}
	}

	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := tx.UpdateMilestone(ctx, update); err != nil {
			return err
		}
		if err := tx.RecomputeTotal(ctx, update.ContractID); err != nil {
			return err
		}
		if reparented {
			return tx.RecomputeTotal(ctx, *update.NewContractID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update milestone: %w", err)
	}

	s.produceRecomputed(ctx, update.ContractID)
	if reparented {
		s.produceRecomputed(ctx, *update.NewContractID)
	}
	return nil
}

// DeleteMilestone removes a milestone and recomputes the contract's total.
func (s *LedgerService) DeleteMilestone(ctx context.Context, contractID uuid.UUID, no int) error {
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := tx.DeleteMilestone(ctx, contractID, no); err != nil {
			return err
		}
		return tx.RecomputeTotal(ctx, contractID)
	})
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete milestone: %w", err)
	}

	s.produceRecomputed(ctx, contractID)
	return nil
}

// CreatePayment records a payment and recomputes the contract's paid amount
// in the same transaction. The amount must be strictly positive.
func (s *LedgerService) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", e.ErrValidation)
	}
	if err := s.checkContractExists(ctx, p.ContractID); err != nil {
		return nil, err
	}
	exists, err := s.repo.PaymentMethodExists(ctx, p.MethodID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment method: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: payment method %s", e.ErrReferential, p.MethodID)
	}

	p.ID = uuid.New()
	err = s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		return tx.RecomputePaid(ctx, p.ContractID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.produceRecomputed(ctx, p.ContractID)
	return p, nil
}

// UpdatePayment modifies a payment. When the update moves the payment to
// another contract, both the old and the new contract are recomputed in the
// same transaction as the move.
func (s *LedgerService) UpdatePayment(ctx context.Context, update *models.PaymentUpdate) error {
	if update.Amount != nil && !update.Amount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive", e.ErrValidation)
	}
	if update.MethodID != nil {
		exists, err := s.repo.PaymentMethodExists(ctx, *update.MethodID)
		if err != nil {
			return fmt.Errorf("failed to check payment method: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: payment method %s", e.ErrReferential, *update.MethodID)
		}
	}
	if update.ContractID != nil {
		if err := s.checkContractExists(ctx, *update.ContractID); err != nil {
			return err
		}
	}

	var oldContractID, newContractID uuid.UUID
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		current, err := tx.GetPayment(ctx, update.ID)
		if err != nil {
			return err
		}
		oldContractID = current.ContractID
		newContractID = oldContractID
		if update.ContractID != nil {
			newContractID = *update.ContractID
		}

		if err := tx.UpdatePayment(ctx, update); err != nil {
			return err
		}
		if err := tx.RecomputePaid(ctx, oldContractID); err != nil {
			return err
		}
		if newContractID != oldContractID {
			return tx.RecomputePaid(ctx, newContractID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update payment: %w", err)
	}

	s.produceRecomputed(ctx, oldContractID)
	if newContractID != oldContractID {
		s.produceRecomputed(ctx, newContractID)
	}
	return nil
}

// DeletePayment removes a payment and recomputes the owning contract's paid
// amount. The contract id comes from the row being deleted.
func (s *LedgerService) DeletePayment(ctx context.Context, id uuid.UUID) error {
	var contractID uuid.UUID
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		current, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		contractID = current.ContractID

		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}
		return tx.RecomputePaid(ctx, contractID)
	})
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete payment: %w", err)
	}

	s.produceRecomputed(ctx, contractID)
	return nil
}

// GetMilestone retrieves a milestone by its contract and sequence number.
func (s *LedgerService) GetMilestone(ctx context.Context, contractID uuid.UUID, no int) (*models.Milestone, error) {
	return s.repo.GetMilestone(ctx, contractID, no)
}

// ListMilestones returns a contract's milestones ordered by sequence number.
func (s *LedgerService) ListMilestones(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	return s.repo.ListMilestones(ctx, contractID)
}

// GetPayment retrieves a payment by ID.
func (s *LedgerService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments returns a contract's payments ordered by payment date.
func (s *LedgerService) ListPayments(ctx context.Context, contractID uuid.UUID) ([]models.Payment, error) {
	return s.repo.ListPayments(ctx, contractID)
}

func (s *LedgerService) checkContractExists(ctx context.Context, id uuid.UUID) error {
	exists, err := s.repo.ContractExists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check contract: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: contract %s", e.ErrReferential, id)
	}
	return nil
}

// produceRecomputed publishes the fresh contract snapshot after a committed
// recompute.
func (s *LedgerService) produceRecomputed(ctx context.Context, contractID uuid.UUID) {
	contract, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		s.logger.Error("Failed to get contract for event",
			zap.Error(err),
			zap.String("contract_id", contractID.String()),
		)
		return
	}
	go func() {
		s.producer.Produce(events.ContractRecomputed, contract)
	}()
}
