package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceChange records one variant price rewritten by a catalog migration.
// Rows are append-only: never updated, never deleted.
type PriceChange struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	RunID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID   string          `gorm:"not null"`
	Pass        string          `gorm:"not null"`
	PriceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PriceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time
}

func (PriceChange) TableName() string { return "variant_price_changes" }
