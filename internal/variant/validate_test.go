package variant_test

import (
	"errors"
	"testing"

	"storefront/internal/variant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsMigratedDocument(t *testing.T) {
	doc := mustParse(t, `{"variants":[{"id":1,"price":450,"stock":2,"is_default":true},{"id":2,"price":0}]}`)
	assert.NoError(t, variant.Validate(doc))
	assert.NoError(t, variant.Validate(nil))
	assert.NoError(t, variant.Validate(mustParse(t, `{"variants":[]}`)))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	doc := mustParse(t, `{"variants":[
		{"id":"a","price":-1},
		{"id":"a","stock":-4},
		{"id":"b"}
	]}`)

	err := variant.Validate(doc)
	require.Error(t, err)

	var verr *variant.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []variant.Problem{
		{Kind: variant.ProblemNegativePrice, VariantID: "a"},
		{Kind: variant.ProblemDuplicateID, VariantID: "a"},
		{Kind: variant.ProblemNegativeStock, VariantID: "a"},
		{Kind: variant.ProblemMissingDefault},
	}, verr.Problems)
	assert.True(t, verr.Has(variant.ProblemDuplicateID))
	assert.False(t, verr.Has(variant.ProblemMultipleDefaults))
	assert.Contains(t, err.Error(), "negative_price(a)")
}

func TestValidateMultipleDefaults(t *testing.T) {
	err := variant.Validate(mustParse(t, `{"variants":[{"id":1,"is_default":true},{"id":2,"is_default":true}]}`))
	var verr *variant.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has(variant.ProblemMultipleDefaults))
}
