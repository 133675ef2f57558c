// Package migrator rewrites stored variant documents so every published
// product conforms to the current schema conventions.
//
// A pass is a pure document transformation; the Runner snapshots the catalog,
// folds every product through the pass independently and persists the
// documents that changed. Passes are idempotent, so an interrupted or
// partially failed run is retried by simply running it again.
package migrator

import (
	"errors"
	"fmt"
	"sort"

	"storefront/internal/variant"

	"github.com/shopspring/decimal"
)

const (
	PassPricingAbsolute = "pricing-absolute"
	PassDefaultVariant  = "default-variant"
)

var (
	ErrUnknownPass = errors.New("unknown migration pass")
	// ErrNegativePrice means an offset pushed a variant below zero.
	ErrNegativePrice = errors.New("variant price would be negative")
)

// Field names what a Change touched.
type Field string

const (
	FieldPrice   Field = "price"
	FieldDefault Field = "is_default"
)

// Change is a single variant field rewritten by a pass. Prices are only set
// for FieldPrice.
type Change struct {
	VariantID   string
	Field       Field
	PriceBefore decimal.Decimal
	PriceAfter  decimal.Decimal
}

// Pass is one schema-convention transformation.
type Pass interface {
	Name() string
	Description() string
	// Transform rewrites doc in place and reports what changed. No changes
	// means the document already conforms and must not be written. An error
	// means the product cannot be brought into conformance automatically.
	Transform(basePrice decimal.Decimal, doc *variant.Document) ([]Change, error)
}

// Registry resolves passes by name.
type Registry struct {
	passes map[string]Pass
}

func NewRegistry(passes ...Pass) *Registry {
	r := &Registry{passes: make(map[string]Pass, len(passes))}
	for _, p := range passes {
		r.passes[p.Name()] = p
	}
	return r
}

// DefaultRegistry holds every pass shipped with the catalog.
func DefaultRegistry() *Registry {
	return NewRegistry(PricingNormalization{}, DefaultBackfill{})
}

func (r *Registry) Lookup(name string) (Pass, error) {
	p, ok := r.passes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPass, name)
	}
	return p, nil
}

// All returns the registered passes ordered by name.
func (r *Registry) All() []Pass {
	names := r.Names()
	out := make([]Pass, 0, len(names))
	for _, n := range names {
		out = append(out, r.passes[n])
	}
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.passes))
	for n := range r.passes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
