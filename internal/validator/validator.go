// Package validator implements the three-layer event validation pipeline:
// structural shape, synchronous business rules, and cross-reference
// resolution against reference data.
package validator

import (
	"context"

	"github.com/eld-core/ingestor/internal/event"
)

// FieldError describes a single validation failure on an event.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

// Result is the outcome of validating one event.
type Result struct {
	Valid  bool
	Errors []FieldError
}

// addError appends a failure and marks the result invalid.
func (r *Result) addError(field, code, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Validator runs all three layers against a single event or a batch.
// Layer 3 is skipped entirely when no Resolver is configured, rather
// than requiring callers to pass a no-op stub.
type Validator struct {
	xref *Layer3Config
}

// New constructs a Validator. xref may be nil to skip cross-reference
// validation entirely (e.g. in unit tests or contexts with no reference
// data available).
func New(xref *Layer3Config) *Validator {
	return &Validator{xref: xref}
}

// Validate runs Layer 1 and Layer 2 against a single event. Layer 3 is
// batch-oriented and only runs via ValidateBatch, since it amortizes bulk
// reference lookups across many events.
func (v *Validator) Validate(e *event.Event) Result {
	result := Result{Valid: true}

	ValidateShape(e, &result)
	if !result.Valid {
		return result
	}

	ValidateBusinessRules(e, nil, &result)

	return result
}

// ValidateBatch runs all three layers across a batch, in the canonical
// submission order. Layer 2's monotonicity checks and Layer 3's bulk
// cross-reference lookups both depend on seeing the whole batch at once.
func (v *Validator) ValidateBatch(ctx context.Context, events []*event.Event, resolver Resolver) map[int]Result {
	results := make(map[int]Result, len(events))

	valid := make([]*event.Event, 0, len(events))
	validIndex := make([]int, 0, len(events))

	for i, e := range events {
		result := Result{Valid: true}

		ValidateShape(e, &result)
		if result.Valid {
			ValidateBusinessRules(e, events[:i], &result)
		}

		results[i] = result

		if result.Valid {
			valid = append(valid, e)
			validIndex = append(validIndex, i)
		}
	}

	if v.xref == nil || resolver == nil || len(valid) == 0 {
		return results
	}

	xrefResults := ValidateXref(ctx, valid, resolver, *v.xref)
	for localIdx, result := range xrefResults {
		globalIdx := validIndex[localIdx]

		merged := results[globalIdx]
		merged.Valid = merged.Valid && result.Valid
		merged.Errors = append(merged.Errors, result.Errors...)
		results[globalIdx] = merged
	}

	return results
}
