package model

import (
	"time"

	"storefront/internal/variant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product is a catalog row. Variants holds the serialized variant document
// exactly as stored; it is NULL for products sold without variants.
// BasePrice is the historical/original price and never changes meaning when
// variants are added.
type Product struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string          `gorm:"index;not null"`
	BasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BaseStock int             `gorm:"not null;default:0"`
	Variants  datatypes.JSON  `gorm:"type:jsonb"`
	Deleted   bool            `gorm:"not null;default:false;index"`
	CreatedAt time.Time
	// UpdatedAt doubles as the compare-and-set token for variant rewrites.
	UpdatedAt time.Time
}

func (Product) TableName() string { return "products" }

// Resolvable converts the row into the resolver's input. The error reports a
// malformed variant document; the returned value is usable either way.
func (p *Product) Resolvable() (variant.Product, error) {
	return variant.Load(p.BasePrice, p.BaseStock, p.Variants)
}
