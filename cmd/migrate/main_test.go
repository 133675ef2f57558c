package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/migrator"
	"storefront/internal/model"
	"storefront/internal/worker"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport() *migrator.Report {
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	failed := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	results := []migrator.Result{
		{
			ProductID: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Outcome:   migrator.OutcomeUpdated,
			Changes: []migrator.Change{{
				VariantID:   "s",
				Field:       migrator.FieldPrice,
				PriceBefore: decimal.NewFromInt(-50),
				PriceAfter:  decimal.NewFromInt(450),
			}},
		},
		{ProductID: failed, Outcome: migrator.OutcomeFailed, Reason: migrator.ReasonMalformedDocument, Detail: "variants: not an array"},
	}
	return &migrator.Report{
		RunID:      uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Pass:       migrator.PassPricingAbsolute,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Results:    results,
		Summary:    migrator.Summarize(results),
	}
}

func TestPassesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"passes"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), migrator.PassPricingAbsolute)
	assert.Contains(t, out.String(), migrator.PassDefaultVariant)
}

func TestUnknownFormatRejected(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"passes", "-o", "xml"})
	assert.Error(t, cmd.Execute())
}

func TestRunRequiresKnownPass(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--pass", "nope"})
	assert.ErrorIs(t, cmd.Execute(), migrator.ErrUnknownPass)
}

func TestRenderReportText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderReport(&out, formatText, sampleReport(), false))

	s := out.String()
	assert.Contains(t, s, "pass pricing-absolute")
	assert.Contains(t, s, "partial_failure in 1.5s")
	assert.Contains(t, s, "inspected 1  updated 1  skipped 0  failed 1")
	assert.Contains(t, s, "11111111-1111-1111-1111-111111111111")
	assert.NotContains(t, s, "22222222", "successful products are hidden by default")
}

func TestRenderReportJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderReport(&out, formatJSON, sampleReport(), true))

	var v reportView
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, []string{"11111111-1111-1111-1111-111111111111"}, v.FailedIDs)
	require.Len(t, v.Results, 2)
	require.Len(t, v.Results[0].Changes, 1)
	assert.Equal(t, "-50", v.Results[0].Changes[0].Before)
	assert.Equal(t, "450", v.Results[0].Changes[0].After)
}

func TestRenderReportYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderReport(&out, formatYAML, sampleReport(), false))

	var v reportView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, "partial_failure", v.Status)
	assert.Equal(t, 1, v.Failed)
	require.Len(t, v.Results, 1)
	assert.Equal(t, "malformed_document", v.Results[0].Reason)
}

func TestRenderRuns(t *testing.T) {
	finished := time.Date(2026, 4, 1, 10, 5, 0, 0, time.UTC)
	runs := []model.MigrationRun{{
		ID:         uuid.New(),
		Pass:       migrator.PassDefaultVariant,
		DryRun:     true,
		Status:     "success",
		Updated:    4,
		FailedIDs:  pq.StringArray{},
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
	}}

	var out bytes.Buffer
	require.NoError(t, renderRuns(&out, formatText, runs))
	assert.Contains(t, out.String(), "default-variant (dry)")

	out.Reset()
	require.NoError(t, renderRuns(&out, formatJSON, runs))
	var views []runView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "2026-04-01T10:05:00Z", views[0].FinishedAt)
}

func TestRenderFailuresYAMLKeepsPayloadReadable(t *testing.T) {
	entries := []worker.DLQEntry{{
		JobType:  worker.JobTypeFailedProduct,
		Payload:  json.RawMessage(`{"product_id":"abc"}`),
		Reason:   "conflict",
		FailedAt: "2026-04-01T10:00:00Z",
	}}

	var out bytes.Buffer
	require.NoError(t, renderFailures(&out, formatYAML, entries))
	assert.Contains(t, out.String(), `product_id`)
	assert.NotContains(t, out.String(), "!!binary")
}
