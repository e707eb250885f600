package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reference entities. Contracts hold non-owning references to these; deleting
// one that is still referenced is rejected, except ExecutionStage and VatRate
// which may simply be cleared on the contract.

// ContractType categorizes a contract.
type ContractType struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"uniqueIndex;not null"`
}

// ExecutionStage is a stage of contract execution, also referenced by
// milestones.
type ExecutionStage struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"uniqueIndex;not null"`
}

// VatRate is a VAT percentage in the range 0-100.
type VatRate struct {
	ID      uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Percent decimal.Decimal `gorm:"type:decimal(5,2);not null"`
}

// PaymentMethod is how a payment was made (wire transfer, cash, ...).
type PaymentMethod struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"uniqueIndex;not null"`
}
