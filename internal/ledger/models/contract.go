// Package models defines the core domain models for the contract ledger:
// Contract with its derived monetary fields, Milestone, Payment, Organization
// and the reference entities they point at.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contract defines the domain model for a contract between two organizations.
// TotalAmount, PaidAmount and DebtAmount are derived from the contract's
// milestones and payments by the recompute engine and must never be written
// directly by callers.
type Contract struct {
	// ID is the unique identifier for the contract.
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
	// Number is the contract number; unique per customer, not globally.
	Number string `gorm:"uniqueIndex:idx_contracts_number_customer;not null"`
	// CustomerID references the customer organization.
	CustomerID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_contracts_number_customer;not null"`
	// ContractorID references the contractor organization.
	ContractorID uuid.UUID `gorm:"type:uuid;not null"`
	// TypeID references the contract type.
	TypeID uuid.UUID `gorm:"type:uuid;not null"`
	// StageID optionally references the current execution stage.
	StageID *uuid.UUID `gorm:"type:uuid"`
	// VatRateID optionally references the applicable VAT rate.
	VatRateID *uuid.UUID `gorm:"type:uuid"`
	// SignedAt is the contract signing date.
	SignedAt time.Time
	// TotalAmount is the sum of milestone amounts (derived).
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	// PaidAmount is the sum of payment amounts (derived).
	PaidAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	// DebtAmount is max(TotalAmount-PaidAmount, 0) (derived).
	DebtAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	// CreatedAt records when the contract row was created.
	CreatedAt time.Time
	// UpdatedAt records when the contract row was last updated.
	UpdatedAt time.Time
}

// ContractUpdate represents the fields that can be updated for a Contract.
// Pointer types are used to allow partial updates. The derived monetary
// fields are deliberately absent.
type ContractUpdate struct {
	// ID is the unique identifier for the contract to update.
	ID uuid.UUID
	// Number is the new contract number.
	Number *string
	// StageID is the new execution stage; uuid.Nil clears it.
	StageID *uuid.UUID
	// VatRateID is the new VAT rate; uuid.Nil clears it.
	VatRateID *uuid.UUID
	// SignedAt is the new signing date.
	SignedAt *time.Time
}
