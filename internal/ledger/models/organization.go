package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a legal entity referenced by contracts as customer or
// contractor. TaxID is the unique tax identifier. An organization cannot be
// deleted while any contract references it.
type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	TaxID     string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
