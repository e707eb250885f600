package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Milestone is a planned partial-payment obligation of a contract. It is
// identified by (ContractID, No); the sequence number is unique only within
// its contract. Amount and Advance are independent: an advance may exceed the
// planned amount.
type Milestone struct {
	ContractID uuid.UUID `gorm:"type:uuid;primaryKey"`
	No         int       `gorm:"primaryKey;autoIncrement:false"`
	DueDate    time.Time
	// StageID optionally ties the milestone to an execution stage.
	StageID *uuid.UUID      `gorm:"type:uuid"`
	Amount  decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Advance decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Subject string
}

// MilestoneUpdate represents a partial update of a Milestone. ContractID and
// No identify the row; NewContractID, when set, moves the milestone to
// another contract (both contracts are recomputed).
type MilestoneUpdate struct {
	ContractID    uuid.UUID
	No            int
	NewContractID *uuid.UUID
	DueDate       *time.Time
	StageID       *uuid.UUID
	Amount        *decimal.Decimal
	Advance       *decimal.Decimal
	Subject       *string
}
