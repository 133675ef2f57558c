// Package variant models a product's purchasable variants: the stored
// document, its invariants, and the read-only queries the catalog uses to
// price and stock a product.
//
// Documents are parsed once at the storage boundary into typed values and
// encoded once on the way back. Fields this package does not understand are
// carried through verbatim so a rewrite only touches what it changed.
package variant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PricingAbsolute tags a document whose variant prices are final amounts.
const PricingAbsolute = "absolute"

const (
	keyVariants     = "variants"
	keyPricingModel = "pricing_model"

	keyID        = "id"
	keyPrice     = "price"
	keyStock     = "stock"
	keyIsDefault = "is_default"
)

// Document is the parsed form of a product's variant document.
type Document struct {
	Variants []Variant
	// PricingModel is empty for documents written before prices became absolute.
	PricingModel string

	extra map[string]json.RawMessage
}

// Variant is one purchasable option of a product.
type Variant struct {
	ID        string
	Price     decimal.Decimal
	Stock     int
	IsDefault bool

	numericID  bool
	hasStock   bool
	hasDefault bool
	// rawPrice is the stored price text, re-emitted while Price still equals
	// storedPrice. Nil when the document had no price key.
	rawPrice    json.RawMessage
	storedPrice decimal.Decimal
	extra       map[string]json.RawMessage
}

// Product is everything the resolver needs to answer price and stock queries.
// Doc is nil when the product has no variant document.
type Product struct {
	BasePrice decimal.Decimal
	BaseStock int
	Doc       *Document
}

// Load builds a Product from a stored record. The returned Product is always
// usable: on a parse failure Doc is nil (base-product semantics) and the error
// is returned for the caller to log.
func Load(basePrice decimal.Decimal, baseStock int, raw []byte) (Product, error) {
	p := Product{BasePrice: basePrice, BaseStock: baseStock}
	doc, err := Parse(raw)
	if err != nil {
		return p, err
	}
	p.Doc = doc
	return p, nil
}

// Parse decodes stored document text. Empty input and JSON null mean "no
// document" and yield (nil, nil). Any other shape mismatch yields a
// *ParseError matching ErrMalformedDocument.
func Parse(raw []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, malformed("", "root is not a JSON object", err)
	}

	doc := &Document{}

	if rawVariants, ok := fields[keyVariants]; ok && !isNull(rawVariants) {
		var items []json.RawMessage
		if err := json.Unmarshal(rawVariants, &items); err != nil {
			return nil, malformed(keyVariants, "not an array", err)
		}
		doc.Variants = make([]Variant, 0, len(items))
		for i, item := range items {
			v, err := parseVariant(fmt.Sprintf("%s[%d]", keyVariants, i), item)
			if err != nil {
				return nil, err
			}
			doc.Variants = append(doc.Variants, v)
		}
	}
	delete(fields, keyVariants)

	if rawModel, ok := fields[keyPricingModel]; ok && !isNull(rawModel) {
		if err := json.Unmarshal(rawModel, &doc.PricingModel); err != nil {
			return nil, malformed(keyPricingModel, "not a string", err)
		}
	}
	delete(fields, keyPricingModel)

	if len(fields) > 0 {
		doc.extra = fields
	}
	return doc, nil
}

func parseVariant(path string, raw json.RawMessage) (Variant, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Variant{}, malformed(path, "not an object", err)
	}

	var v Variant

	rawID, ok := fields[keyID]
	if !ok || isNull(rawID) {
		return Variant{}, malformed(path+".id", "missing", nil)
	}
	if err := v.decodeID(rawID); err != nil {
		return Variant{}, malformed(path+".id", "must be a non-empty string or a number", err)
	}

	if rawPrice, ok := fields[keyPrice]; ok {
		if !isNull(rawPrice) {
			price, err := decodeDecimal(rawPrice)
			if err != nil {
				return Variant{}, malformed(path+".price", "not a decimal", err)
			}
			v.Price = price
		}
		v.rawPrice = rawPrice
		v.storedPrice = v.Price
	}

	if rawStock, ok := fields[keyStock]; ok && !isNull(rawStock) {
		if err := json.Unmarshal(rawStock, &v.Stock); err != nil {
			return Variant{}, malformed(path+".stock", "not an integer", err)
		}
		v.hasStock = true
	}

	if rawDefault, ok := fields[keyIsDefault]; ok && !isNull(rawDefault) {
		if err := json.Unmarshal(rawDefault, &v.IsDefault); err != nil {
			return Variant{}, malformed(path+".is_default", "not a boolean", err)
		}
		v.hasDefault = true
	}

	for _, k := range []string{keyID, keyPrice, keyStock, keyIsDefault} {
		delete(fields, k)
	}
	if len(fields) > 0 {
		v.extra = fields
	}
	return v, nil
}

func (v *Variant) decodeID(raw json.RawMessage) error {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		if len(bytes.TrimSpace([]byte(s))) == 0 {
			return errors.New("blank id")
		}
		v.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	v.ID = n.String()
	v.numericID = true
	return nil
}

func decodeDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Encode serializes the document for storage. A nil document encodes to nil.
func (d *Document) Encode() ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return d.MarshalJSON()
}

// MarshalJSON writes the known fields over the preserved unknown ones.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.extra)+2)
	for k, raw := range d.extra {
		out[k] = raw
	}

	items := make([]json.RawMessage, 0, len(d.Variants))
	for i := range d.Variants {
		b, err := d.Variants[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	out[keyVariants] = encoded

	if d.PricingModel != "" {
		pm, err := json.Marshal(d.PricingModel)
		if err != nil {
			return nil, err
		}
		out[keyPricingModel] = pm
	}
	return json.Marshal(out)
}

// MarshalJSON keeps price, stock and is_default absent when they were absent
// on read and still hold their zero value. An unchanged price keeps its stored
// text, so "12.50" stays a string.
func (v *Variant) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(v.extra)+4)
	for k, raw := range v.extra {
		out[k] = raw
	}

	if v.numericID {
		out[keyID] = json.RawMessage(v.ID)
	} else {
		id, err := json.Marshal(v.ID)
		if err != nil {
			return nil, err
		}
		out[keyID] = id
	}

	switch {
	case v.rawPrice != nil && v.Price.Equal(v.storedPrice):
		out[keyPrice] = v.rawPrice
	case v.rawPrice != nil || !v.Price.IsZero():
		out[keyPrice] = json.RawMessage(v.Price.String())
	}

	if v.hasStock || v.Stock != 0 {
		out[keyStock] = json.RawMessage(fmt.Sprintf("%d", v.Stock))
	}
	if v.hasDefault || v.IsDefault {
		if v.IsDefault {
			out[keyIsDefault] = json.RawMessage("true")
		} else {
			out[keyIsDefault] = json.RawMessage("false")
		}
	}
	return json.Marshal(out)
}

// Clone returns a deep copy safe to mutate.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{PricingModel: d.PricingModel, extra: cloneRaw(d.extra)}
	if d.Variants != nil {
		c.Variants = make([]Variant, len(d.Variants))
		for i, v := range d.Variants {
			v.extra = cloneRaw(v.extra)
			c.Variants[i] = v
		}
	}
	return c
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	c := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// HasVariants reports whether doc carries at least one variant.
func HasVariants(doc *Document) bool {
	return doc != nil && len(doc.Variants) > 0
}
