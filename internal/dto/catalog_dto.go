package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// SelectionRequest checks a variant before it goes into a cart. VariantID may
// be empty for products sold without variants.
type SelectionRequest struct {
	VariantID string `json:"variant_id" validate:"max=64"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VariantResponse struct {
	ID        string          `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	IsDefault bool            `json:"is_default"`
	InStock   bool            `json:"in_stock"`
}

// PricingResponse is returned by GET /v1/products/:id/pricing.
// OriginalPrice is the base price, shown struck through next to DisplayPrice.
type PricingResponse struct {
	ProductID        string            `json:"product_id"`
	Name             string            `json:"name"`
	DisplayPrice     decimal.Decimal   `json:"display_price"`
	OriginalPrice    decimal.Decimal   `json:"original_price"`
	TotalStock       int               `json:"total_stock"`
	DefaultVariantID *string           `json:"default_variant_id"`
	Variants         []VariantResponse `json:"variants"`
}

// SelectionResponse is returned by POST /v1/products/:id/selection.
// Reason is "not_found" or "out_of_stock" when Valid is false.
type SelectionResponse struct {
	Valid   bool             `json:"valid"`
	Reason  string           `json:"reason,omitempty"`
	Price   decimal.Decimal  `json:"price"`
	Variant *VariantResponse `json:"variant,omitempty"`
}

// PriceChangeItem is one audited variant price rewrite.
type PriceChangeItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	RunID       string          `json:"run_id"`
	VariantID   string          `json:"variant_id"`
	Pass        string          `json:"pass"`
	PriceBefore decimal.Decimal `json:"price_before"`
	PriceAfter  decimal.Decimal `json:"price_after"`
	CreatedAt   string          `json:"created_at"`
}

// PriceChangeListResponse is returned by GET /v1/products/:id/price-changes.
type PriceChangeListResponse struct {
	Data  []PriceChangeItem `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
