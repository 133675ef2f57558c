package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"storefront/internal/migrator"
	"storefront/internal/model"
	"storefront/internal/worker"

	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// ── Views ─────────────────────────────────────────────────────────────────────

type changeView struct {
	VariantID string `json:"variant_id" yaml:"variant_id"`
	Field     string `json:"field" yaml:"field"`
	Before    string `json:"before,omitempty" yaml:"before,omitempty"`
	After     string `json:"after,omitempty" yaml:"after,omitempty"`
}

type resultView struct {
	ProductID string       `json:"product_id" yaml:"product_id"`
	Outcome   string       `json:"outcome" yaml:"outcome"`
	Reason    string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail    string       `json:"detail,omitempty" yaml:"detail,omitempty"`
	Changes   []changeView `json:"changes,omitempty" yaml:"changes,omitempty"`
}

type reportView struct {
	RunID     string       `json:"run_id" yaml:"run_id"`
	Pass      string       `json:"pass" yaml:"pass"`
	DryRun    bool         `json:"dry_run" yaml:"dry_run"`
	Status    string       `json:"status" yaml:"status"`
	Total     int          `json:"total" yaml:"total"`
	Inspected int          `json:"inspected" yaml:"inspected"`
	Updated   int          `json:"updated" yaml:"updated"`
	Skipped   int          `json:"skipped" yaml:"skipped"`
	Failed    int          `json:"failed" yaml:"failed"`
	FailedIDs []string     `json:"failed_ids" yaml:"failed_ids"`
	Elapsed   string       `json:"elapsed" yaml:"elapsed"`
	Results   []resultView `json:"results,omitempty" yaml:"results,omitempty"`
}

// newReportView flattens a report. Only failed results are included unless
// all is set: a clean run over a large catalog would otherwise print every
// product.
func newReportView(r *migrator.Report, all bool) reportView {
	v := reportView{
		RunID:     r.RunID.String(),
		Pass:      r.Pass,
		DryRun:    r.DryRun,
		Status:    string(r.Summary.Status),
		Total:     r.Summary.Total,
		Inspected: r.Summary.Inspected,
		Updated:   r.Summary.Updated,
		Skipped:   r.Summary.Skipped,
		Failed:    r.Summary.Failed,
		FailedIDs: make([]string, 0, len(r.Summary.FailedIDs)),
		Elapsed:   r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	}
	for _, id := range r.Summary.FailedIDs {
		v.FailedIDs = append(v.FailedIDs, id.String())
	}
	for _, res := range r.Results {
		if !all && res.Outcome != migrator.OutcomeFailed {
			continue
		}
		rv := resultView{
			ProductID: res.ProductID.String(),
			Outcome:   string(res.Outcome),
			Reason:    string(res.Reason),
			Detail:    res.Detail,
		}
		for _, c := range res.Changes {
			cv := changeView{VariantID: c.VariantID, Field: string(c.Field)}
			if c.Field == migrator.FieldPrice {
				cv.Before, cv.After = c.PriceBefore.String(), c.PriceAfter.String()
			}
			rv.Changes = append(rv.Changes, cv)
		}
		v.Results = append(v.Results, rv)
	}
	return v
}

type runView struct {
	ID         string   `json:"id" yaml:"id"`
	Pass       string   `json:"pass" yaml:"pass"`
	DryRun     bool     `json:"dry_run" yaml:"dry_run"`
	Status     string   `json:"status" yaml:"status"`
	Inspected  int      `json:"inspected" yaml:"inspected"`
	Updated    int      `json:"updated" yaml:"updated"`
	Skipped    int      `json:"skipped" yaml:"skipped"`
	Failed     int      `json:"failed" yaml:"failed"`
	FailedIDs  []string `json:"failed_ids,omitempty" yaml:"failed_ids,omitempty"`
	StartedAt  string   `json:"started_at" yaml:"started_at"`
	FinishedAt string   `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

func newRunView(r model.MigrationRun) runView {
	v := runView{
		ID:        r.ID.String(),
		Pass:      r.Pass,
		DryRun:    r.DryRun,
		Status:    r.Status,
		Inspected: r.Inspected,
		Updated:   r.Updated,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		FailedIDs: []string(r.FailedIDs),
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		v.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return v
}

// ── Encoders ──────────────────────────────────────────────────────────────────

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return checkFormat(format)
}

func renderReport(w io.Writer, format string, r *migrator.Report, all bool) error {
	v := newReportView(r, all)
	if format != formatText {
		return encode(w, format, v)
	}

	mode := ""
	if v.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "pass %s%s  run %s  %s in %s\n", v.Pass, mode, v.RunID, v.Status, v.Elapsed)
	fmt.Fprintf(w, "  inspected %d  updated %d  skipped %d  failed %d\n", v.Inspected, v.Updated, v.Skipped, v.Failed)
	if len(v.Results) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tOUTCOME\tREASON\tDETAIL")
	for _, res := range v.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.ProductID, res.Outcome, res.Reason, res.Detail)
	}
	return tw.Flush()
}

func renderRuns(w io.Writer, format string, runs []model.MigrationRun) error {
	views := make([]runView, 0, len(runs))
	for _, r := range runs {
		views = append(views, newRunView(r))
	}
	if format != formatText {
		return encode(w, format, views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPASS\tSTATUS\tUPDATED\tSKIPPED\tFAILED\tSTARTED")
	for _, v := range views {
		pass := v.Pass
		if v.DryRun {
			pass += " (dry)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", v.ID, pass, v.Status, v.Updated, v.Skipped, v.Failed, v.StartedAt)
	}
	return tw.Flush()
}

type failureView struct {
	FailedAt string `yaml:"failed_at"`
	JobType  string `yaml:"job_type"`
	Reason   string `yaml:"reason"`
	Payload  string `yaml:"payload"`
}

func renderFailures(w io.Writer, format string, entries []worker.DLQEntry) error {
	switch format {
	case formatJSON:
		return encode(w, format, entries)
	case formatYAML:
		// RawMessage would come out as !!binary
		views := make([]failureView, 0, len(entries))
		for _, e := range entries {
			views = append(views, failureView{FailedAt: e.FailedAt, JobType: e.JobType, Reason: e.Reason, Payload: string(e.Payload)})
		}
		return encode(w, format, views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FAILED AT\tTYPE\tREASON\tPAYLOAD")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.FailedAt, e.JobType, e.Reason, string(e.Payload))
	}
	return tw.Flush()
}
