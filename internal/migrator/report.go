package migrator

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one product in one pass:
// unvisited → inspected → skipped | updated | failed.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FailureReason classifies a failed product.
type FailureReason string

const (
	ReasonMalformedDocument FailureReason = "malformed_document"
	ReasonInvalidDocument   FailureReason = "invalid_document"
	ReasonConflict          FailureReason = "conflict"
	ReasonPersistence       FailureReason = "persistence"
	ReasonCanceled          FailureReason = "canceled"
)

// Result is the outcome of one product. In a dry run OutcomeUpdated means
// "would be updated".
type Result struct {
	ProductID uuid.UUID
	Outcome   Outcome
	Reason    FailureReason
	Detail    string
	Changes   []Change
}

func (r Result) failed(reason FailureReason, err error) Result {
	r.Outcome = OutcomeFailed
	r.Reason = reason
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}

type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
)

// Summary aggregates a result list. Inspected counts every product that
// reached a non-failed terminal state.
type Summary struct {
	Total     int
	Inspected int
	Updated   int
	Skipped   int
	Failed    int
	FailedIDs []uuid.UUID
	Status    Status
}

// Summarize folds results into a Summary. It is pure: the same results
// always give the same summary.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeUpdated:
			s.Updated++
			s.Inspected++
		case OutcomeSkipped:
			s.Skipped++
			s.Inspected++
		default:
			s.Failed++
			s.FailedIDs = append(s.FailedIDs, r.ProductID)
		}
	}
	s.Status = StatusSuccess
	if s.Failed > 0 {
		s.Status = StatusPartialFailure
	}
	return s
}

// Report is what an operator gets back from a run.
type Report struct {
	RunID      uuid.UUID
	Pass       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
	Summary    Summary
}

// Failures returns the failed results in snapshot order.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}
