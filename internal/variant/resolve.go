package variant

import "github.com/shopspring/decimal"

// Resolver functions sit on the browse, cart and checkout paths. They never
// mutate their input and never fail: bad or missing data degrades to plain
// base-product semantics.

// DefaultVariant returns the first variant flagged as default, falling back
// to the first variant in stored order. Nil when there are no variants.
func DefaultVariant(doc *Document) *Variant {
	if !HasVariants(doc) {
		return nil
	}
	for i := range doc.Variants {
		if doc.Variants[i].IsDefault {
			return &doc.Variants[i]
		}
	}
	return &doc.Variants[0]
}

// DisplayPrice is the price shown for a product before any selection.
func DisplayPrice(p Product) decimal.Decimal {
	if !HasVariants(p.Doc) {
		return p.BasePrice
	}
	return PriceOf(p.BasePrice, DefaultVariant(p.Doc))
}

// OriginalPrice is the "was" price, independent of variants.
func OriginalPrice(p Product) decimal.Decimal {
	return p.BasePrice
}

// ByID looks a variant up by exact id.
func ByID(doc *Document, id string) *Variant {
	if doc == nil {
		return nil
	}
	for i := range doc.Variants {
		if doc.Variants[i].ID == id {
			return &doc.Variants[i]
		}
	}
	return nil
}

// StockFor returns the stock of the identified variant, 0 if it is unknown.
func StockFor(doc *Document, id string) int {
	if v := ByID(doc, id); v != nil {
		return v.Stock
	}
	return 0
}

// TotalStock sums variant stock. baseStock only counts for products without
// variants; once variants exist their stock is authoritative.
func TotalStock(doc *Document, baseStock int) int {
	if !HasVariants(doc) {
		return baseStock
	}
	total := 0
	for _, v := range doc.Variants {
		total += v.Stock
	}
	return total
}

// PriceOf is the final price of a line: the variant's absolute price when a
// variant is selected, the base price otherwise.
func PriceOf(basePrice decimal.Decimal, v *Variant) decimal.Decimal {
	if v == nil {
		return basePrice
	}
	return v.Price
}

// Reason explains why a selection is not purchasable.
type Reason string

const (
	ReasonNotFound   Reason = "not_found"
	ReasonOutOfStock Reason = "out_of_stock"
)

// Selection is the outcome of checking a requested variant.
// Variant is nil for valid selections on products without variants.
type Selection struct {
	Valid   bool
	Reason  Reason
	Variant *Variant
}

// ValidateSelection checks whether id can be added to a cart.
func ValidateSelection(doc *Document, id string) Selection {
	if !HasVariants(doc) {
		return Selection{Valid: true}
	}
	v := ByID(doc, id)
	if v == nil {
		return Selection{Reason: ReasonNotFound}
	}
	if v.Stock <= 0 {
		return Selection{Reason: ReasonOutOfStock, Variant: v}
	}
	return Selection{Valid: true, Variant: v}
}
