package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an actual payment event recorded against a contract. Amount is
// strictly positive; zero and negative payments are rejected at the service
// boundary.
type Payment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ContractID uuid.UUID `gorm:"type:uuid;index;not null"`
	PaidAt     time.Time
	Amount     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	MethodID   uuid.UUID       `gorm:"type:uuid;not null"`
	DocNumber  string
	CreatedAt  time.Time
}

// PaymentUpdate represents a partial update of a Payment. ContractID, when
// set, moves the payment to another contract (both contracts are recomputed).
type PaymentUpdate struct {
	ID         uuid.UUID
	ContractID *uuid.UUID
	PaidAt     *time.Time
	Amount     *decimal.Decimal
	MethodID   *uuid.UUID
	DocNumber  *string
}
