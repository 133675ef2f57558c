package variant

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDocument is matched by every parse failure so callers can
// degrade (read path) or record the product as failed (migrations).
var ErrMalformedDocument = errors.New("malformed variant document")

// ParseError describes why a stored document could not be read.
type ParseError struct {
	Path   string // e.g. "variants[2].price"; empty for the root
	Reason string
	Err    error // underlying decode error, if any
}

func (e *ParseError) Error() string {
	msg := ErrMalformedDocument.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == ErrMalformedDocument }

func (e *ParseError) Unwrap() error { return e.Err }

func malformed(path, reason string, err error) *ParseError {
	return &ParseError{Path: path, Reason: reason, Err: err}
}

// ProblemKind names a broken document invariant.
type ProblemKind string

const (
	ProblemDuplicateID      ProblemKind = "duplicate_id"
	ProblemNegativePrice    ProblemKind = "negative_price"
	ProblemNegativeStock    ProblemKind = "negative_stock"
	ProblemMissingDefault   ProblemKind = "missing_default"
	ProblemMultipleDefaults ProblemKind = "multiple_defaults"
)

// Problem is a single invariant violation. VariantID is empty for
// document-level problems.
type Problem struct {
	Kind      ProblemKind
	VariantID string
}

func (p Problem) String() string {
	if p.VariantID == "" {
		return string(p.Kind)
	}
	return fmt.Sprintf("%s(%s)", p.Kind, p.VariantID)
}

// ValidationError lists every invariant a document violates.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return "invalid variant document: " + strings.Join(parts, ", ")
}

// Has reports whether any problem of the given kind was found.
func (e *ValidationError) Has(kind ProblemKind) bool {
	for _, p := range e.Problems {
		if p.Kind == kind {
			return true
		}
	}
	return false
}
