package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/eld-core/ingestor/internal/event"
)

type fakeResolver struct {
	known map[string]map[string]bool
	err   error
}

func (f *fakeResolver) BulkExists(_ context.Context, kind string, ids []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}

	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		found[id] = f.known[kind][id]
	}

	return found, nil
}

func TestValidateXref_AllResolved(t *testing.T) {
	resolver := &fakeResolver{known: map[string]map[string]bool{
		"carrier": {"c1": true}, "driver": {"d1": true}, "vehicle": {"v1": true}, "device": {"dev1": true},
	}}

	events := []*event.Event{{Carrier: "c1", Driver: "d1", Vehicle: "v1", Device: "dev1"}}

	results := ValidateXref(context.Background(), events, resolver, Layer3Config{StrictMode: true})

	if !results[0].Valid {
		t.Errorf("expected fully resolved event to be valid, got %+v", results[0].Errors)
	}
}

func TestValidateXref_UnresolvedStrictRejects(t *testing.T) {
	resolver := &fakeResolver{known: map[string]map[string]bool{}}

	events := []*event.Event{{Carrier: "unknown", Driver: "d1", Vehicle: "v1", Device: "dev1"}}

	results := ValidateXref(context.Background(), events, resolver, Layer3Config{StrictMode: true})

	if results[0].Valid {
		t.Error("expected unresolved carrier to fail in strict mode")
	}
}

func TestValidateXref_UnresolvedFailOpenAccepts(t *testing.T) {
	resolver := &fakeResolver{known: map[string]map[string]bool{}}

	events := []*event.Event{{Carrier: "unknown", Driver: "d1", Vehicle: "v1", Device: "dev1"}}

	results := ValidateXref(context.Background(), events, resolver, Layer3Config{StrictMode: false})

	if !results[0].Valid {
		t.Errorf("expected fail-open mode to accept unresolved reference, got %+v", results[0].Errors)
	}
}

func TestValidateXref_ResolverErrorDegradesToFailOpen(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("reference db unreachable")}

	events := []*event.Event{{Carrier: "c1", Driver: "d1", Vehicle: "v1", Device: "dev1"}}

	results := ValidateXref(context.Background(), events, resolver, Layer3Config{StrictMode: true})

	if !results[0].Valid {
		t.Error("expected a resolver error to degrade to fail-open even in strict mode")
	}
}

func TestValidateXref_BulkLookupDeduplicatesIDs(t *testing.T) {
	calls := map[string]int{}
	resolver := &countingResolver{counts: calls}

	events := []*event.Event{
		{Carrier: "c1", Driver: "d1", Vehicle: "v1", Device: "dev1"},
		{Carrier: "c1", Driver: "d2", Vehicle: "v1", Device: "dev1"},
	}

	ValidateXref(context.Background(), events, resolver, Layer3Config{})

	if calls["carrier"] != 1 {
		t.Errorf("expected one bulk lookup call for carrier, got %d", calls["carrier"])
	}
}

type countingResolver struct {
	counts map[string]int
}

func (c *countingResolver) BulkExists(_ context.Context, kind string, ids []string) (map[string]bool, error) {
	c.counts[kind]++

	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		found[id] = true
	}

	return found, nil
}

func TestLayer3ConfigFromEnv_DefaultsFailOpen(t *testing.T) {
	t.Setenv("XREF_STRICT_MODE", "")

	cfg := Layer3ConfigFromEnv()
	if cfg.StrictMode {
		t.Error("expected StrictMode to default to false")
	}
}

func TestLayer3ConfigFromEnv_ExplicitTrue(t *testing.T) {
	t.Setenv("XREF_STRICT_MODE", "true")

	cfg := Layer3ConfigFromEnv()
	if !cfg.StrictMode {
		t.Error("expected StrictMode to be true when XREF_STRICT_MODE=true")
	}
}
