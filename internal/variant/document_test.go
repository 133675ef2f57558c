package variant_test

import (
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/variant"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Parse ─────────────────────────────────────────────────────────────────────

func TestParseAbsentDocument(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", " null\n"} {
		doc, err := variant.Parse([]byte(raw))
		require.NoError(t, err, "input %q", raw)
		assert.Nil(t, doc, "input %q", raw)
	}
}

func TestParseTypedFields(t *testing.T) {
	doc, err := variant.Parse([]byte(`{
		"variants": [
			{"id": 1, "price": 450, "stock": 3, "is_default": true},
			{"id": "xl", "price": "19.99"}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, doc.Variants, 2)

	assert.Equal(t, "1", doc.Variants[0].ID)
	assert.Equal(t, "450", doc.Variants[0].Price.String())
	assert.Equal(t, 3, doc.Variants[0].Stock)
	assert.True(t, doc.Variants[0].IsDefault)

	assert.Equal(t, "xl", doc.Variants[1].ID)
	assert.True(t, decimal.RequireFromString("19.99").Equal(doc.Variants[1].Price))
	assert.Equal(t, 0, doc.Variants[1].Stock)
	assert.False(t, doc.Variants[1].IsDefault)
	assert.Empty(t, doc.PricingModel)
}

func TestParseEmptyVariantList(t *testing.T) {
	for _, raw := range []string{`{}`, `{"variants": []}`, `{"variants": null}`} {
		doc, err := variant.Parse([]byte(raw))
		require.NoError(t, err, "input %s", raw)
		require.NotNil(t, doc)
		assert.False(t, variant.HasVariants(doc), "input %s", raw)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{variants:`,
		"array root":        `[{"id":1}]`,
		"variants string":   `{"variants": "abc"}`,
		"variant scalar":    `{"variants": [3]}`,
		"variant null":      `{"variants": [null]}`,
		"missing id":        `{"variants": [{"price": 1}]}`,
		"blank id":          `{"variants": [{"id": "  "}]}`,
		"bool id":           `{"variants": [{"id": true}]}`,
		"price not numeric": `{"variants": [{"id": 1, "price": "cheap"}]}`,
		"fractional stock":  `{"variants": [{"id": 1, "stock": 2.5}]}`,
		"string default":    `{"variants": [{"id": 1, "is_default": "yes"}]}`,
		"pricing model int": `{"pricing_model": 1, "variants": []}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := variant.Parse([]byte(raw))
			assert.Nil(t, doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, variant.ErrMalformedDocument))

			var perr *variant.ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestParseErrorNamesPath(t *testing.T) {
	_, err := variant.Parse([]byte(`{"variants": [{"id": 1}, {"id": 2, "price": []}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variants[1].price")
}

// ── Encode ────────────────────────────────────────────────────────────────────

func TestEncodePreservesUnknownFields(t *testing.T) {
	raw := `{
		"currency": "INR",
		"options": {"color": ["red", "blue"]},
		"variants": [
			{"id": 7, "price": -50, "sku": "TS-RED", "attributes": {"color": "red"}}
		]
	}`
	doc, err := variant.Parse([]byte(raw))
	require.NoError(t, err)

	out, err := doc.Encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "INR", got["currency"])
	assert.Equal(t, map[string]any{"color": []any{"red", "blue"}}, got["options"])

	variants := got["variants"].([]any)
	require.Len(t, variants, 1)
	v := variants[0].(map[string]any)
	assert.Equal(t, float64(7), v["id"], "numeric ids stay numeric")
	assert.Equal(t, float64(-50), v["price"])
	assert.Equal(t, "TS-RED", v["sku"])
	assert.Equal(t, map[string]any{"color": "red"}, v["attributes"])
	assert.NotContains(t, v, "stock")
	assert.NotContains(t, v, "is_default")
	assert.NotContains(t, got, "pricing_model")
}

func TestEncodeRoundTripIsStable(t *testing.T) {
	raw := []byte(`{"variants":[{"id":"a","price":"10.50","stock":0,"is_default":false},{"id":"b","price":12}],"pricing_model":"absolute"}`)
	doc, err := variant.Parse(raw)
	require.NoError(t, err)

	first, err := doc.Encode()
	require.NoError(t, err)
	again, err := variant.Parse(first)
	require.NoError(t, err)
	second, err := again.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, variant.PricingAbsolute, again.PricingModel)

	var got map[string]any
	require.NoError(t, json.Unmarshal(first, &got))
	a := got["variants"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(0), a["stock"], "explicit zero stock stays present")
	assert.Equal(t, false, a["is_default"], "explicit false stays present")
}

func TestEncodeKeepsUntouchedPriceText(t *testing.T) {
	doc, err := variant.Parse([]byte(`{"variants":[{"id":"a","price":"12.50"},{"id":"b"},{"id":"c","price":10.00},{"id":"d","price":null}]}`))
	require.NoError(t, err)

	doc.Variants[0].IsDefault = true
	out, err := doc.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"variants":[
		{"id":"a","price":"12.50","is_default":true},
		{"id":"b"},
		{"id":"c","price":10.00},
		{"id":"d","price":null}
	]}`, string(out))
	assert.Contains(t, string(out), `"price":10.00`, "number text is not reformatted")
}

func TestEncodeWritesChangedPrice(t *testing.T) {
	doc, err := variant.Parse([]byte(`{"variants":[{"id":"a","price":"12.50"},{"id":"b"}]}`))
	require.NoError(t, err)

	doc.Variants[0].Price = decimal.RequireFromString("14.5")
	doc.Variants[1].Price = decimal.NewFromInt(3)
	out, err := doc.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"variants":[{"id":"a","price":14.5},{"id":"b","price":3}]}`, string(out))
}

func TestEncodeNilDocument(t *testing.T) {
	var doc *variant.Document
	out, err := doc.Encode()
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestCloneIsIndependent(t *testing.T) {
	doc, err := variant.Parse([]byte(`{"variants":[{"id":1,"price":5}]}`))
	require.NoError(t, err)

	c := doc.Clone()
	c.Variants[0].Price = decimal.NewFromInt(99)
	c.Variants[0].IsDefault = true
	c.PricingModel = variant.PricingAbsolute

	assert.Equal(t, "5", doc.Variants[0].Price.String())
	assert.False(t, doc.Variants[0].IsDefault)
	assert.Empty(t, doc.PricingModel)
}

// ── Load ──────────────────────────────────────────────────────────────────────

func TestLoadDegradesOnMalformedText(t *testing.T) {
	p, err := variant.Load(decimal.NewFromInt(500), 4, []byte(`{"variants": 12}`))
	assert.ErrorIs(t, err, variant.ErrMalformedDocument)
	assert.Nil(t, p.Doc)
	assert.Equal(t, "500", variant.DisplayPrice(p).String())
	assert.Equal(t, 4, variant.TotalStock(p.Doc, p.BaseStock))
}
