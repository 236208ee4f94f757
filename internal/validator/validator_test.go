package validator

import (
	"context"
	"testing"
	"time"

	"github.com/eld-core/ingestor/internal/event"
)

func TestValidator_Validate_Valid(t *testing.T) {
	e := validShapeEvent()
	e.Timestamp = time.Now()

	v := New(nil)
	result := v.Validate(e)

	if !result.Valid {
		t.Errorf("expected valid event, got %+v", result.Errors)
	}
}

func TestValidator_Validate_StopsAtShapeFailure(t *testing.T) {
	v := New(nil)
	result := v.Validate(&event.Event{})

	if result.Valid {
		t.Fatal("expected empty event to fail")
	}
	// Business-rule errors (e.g. missing timestamp) should not also be
	// appended once shape validation has already failed.
	for _, err := range result.Errors {
		if err.Field == "timestamp" {
			t.Error("did not expect business-rule errors once shape validation failed")
		}
	}
}

func TestValidator_ValidateBatch_NoResolverSkipsLayer3(t *testing.T) {
	v := New(&Layer3Config{StrictMode: true})

	e := validShapeEvent()
	e.Timestamp = time.Now()
	e.SequenceID = 1

	results := v.ValidateBatch(context.Background(), []*event.Event{e}, nil)

	if !results[0].Valid {
		t.Errorf("expected valid batch without a resolver, got %+v", results[0].Errors)
	}
}

func TestValidator_ValidateBatch_MergesXrefErrors(t *testing.T) {
	v := New(&Layer3Config{StrictMode: true})

	e := validShapeEvent()
	e.Timestamp = time.Now()
	e.SequenceID = 1
	e.Carrier = "unknown-carrier"

	resolver := &fakeResolver{known: map[string]map[string]bool{
		"driver": {"driver-1": true}, "vehicle": {"vehicle-1": true}, "device": {"device-1": true},
	}}

	results := v.ValidateBatch(context.Background(), []*event.Event{e}, resolver)

	if results[0].Valid {
		t.Error("expected unresolved carrier to fail the batch in strict mode")
	}
}

func TestValidator_ValidateBatch_SkipsXrefForShapeFailures(t *testing.T) {
	v := New(&Layer3Config{StrictMode: true})

	resolver := &fakeResolver{known: map[string]map[string]bool{}}

	results := v.ValidateBatch(context.Background(), []*event.Event{{}}, resolver)

	if results[0].Valid {
		t.Fatal("expected empty event to fail shape validation")
	}
}
