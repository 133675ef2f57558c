package migrator

import (
	"fmt"

	"storefront/internal/variant"

	"github.com/shopspring/decimal"
)

// ── Pricing normalization ─────────────────────────────────────────────────────

// PricingNormalization turns legacy signed offsets into absolute prices:
// price = base_price + stored offset.
//
// Documents it rewrites are tagged pricing_model="absolute" and skipped from
// then on. Untagged documents whose offsets are all zero-effect (base price
// of 0) produce no change and are not written, matching the historical
// equality-based no-op detection.
type PricingNormalization struct{}

func (PricingNormalization) Name() string { return PassPricingAbsolute }

func (PricingNormalization) Description() string {
	return "rewrite variant price offsets as absolute prices (base_price + offset)"
}

func (PricingNormalization) Transform(basePrice decimal.Decimal, doc *variant.Document) ([]Change, error) {
	if !variant.HasVariants(doc) || doc.PricingModel == variant.PricingAbsolute {
		return nil, nil
	}

	var changes []Change
	for i := range doc.Variants {
		v := &doc.Variants[i]
		next := basePrice.Add(v.Price)
		if next.Equal(v.Price) {
			continue
		}
		if next.IsNegative() {
			return nil, fmt.Errorf("%w: variant %s: %s + %s", ErrNegativePrice, v.ID, basePrice, v.Price)
		}
		changes = append(changes, Change{
			VariantID:   v.ID,
			Field:       FieldPrice,
			PriceBefore: v.Price,
			PriceAfter:  next,
		})
		v.Price = next
	}
	if len(changes) == 0 {
		return nil, nil
	}
	doc.PricingModel = variant.PricingAbsolute
	return changes, nil
}

// ── Default-variant backfill ──────────────────────────────────────────────────

// DefaultBackfill makes the implicit default explicit: when no variant is
// flagged, the variant DefaultVariant already falls back to (the first one)
// gets is_default=true. Documents with any flagged variant are left alone.
type DefaultBackfill struct{}

func (DefaultBackfill) Name() string { return PassDefaultVariant }

func (DefaultBackfill) Description() string {
	return "flag the first variant as default where no variant is flagged"
}

func (DefaultBackfill) Transform(_ decimal.Decimal, doc *variant.Document) ([]Change, error) {
	def := variant.DefaultVariant(doc)
	if def == nil || def.IsDefault {
		return nil, nil
	}
	def.IsDefault = true
	return []Change{{VariantID: def.ID, Field: FieldDefault}}, nil
}
