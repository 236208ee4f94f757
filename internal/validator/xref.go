package validator

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/eld-core/ingestor/internal/event"
)

// Layer3Config controls cross-reference validation behavior.
type Layer3Config struct {
	// StrictMode rejects events whose referenced carrier/driver/vehicle
	// isn't found in reference data. When false (the default), an
	// unresolved reference is accepted and the event is merely flagged,
	// since the registry feed may simply lag behind device enrollment.
	StrictMode bool
}

// Layer3ConfigFromEnv builds a Layer3Config from the XREF_STRICT_MODE
// environment variable, defaulting to fail-open (false) when unset or
// unparsable.
func Layer3ConfigFromEnv() Layer3Config {
	strict, _ := strconv.ParseBool(os.Getenv("XREF_STRICT_MODE"))

	return Layer3Config{StrictMode: strict}
}

// Resolver performs bulk existence checks against reference data
// (carriers, drivers, vehicles, devices). Implemented by internal/storage
// against PostgreSQL lookup tables.
type Resolver interface {
	// BulkExists returns, for each id in ids, whether it exists in the
	// named reference set ("carrier", "driver", "vehicle", "device").
	BulkExists(ctx context.Context, kind string, ids []string) (map[string]bool, error)
}

// ValidateXref cross-references every event's carrier/driver/vehicle/
// device against reference data in as few round trips as possible: one
// bulk lookup per reference kind across the whole batch. Results are
// indexed by the event's position within the valid slice passed in.
func ValidateXref(ctx context.Context, events []*event.Event, resolver Resolver, cfg Layer3Config) map[int]Result {
	results := make(map[int]Result, len(events))

	kinds := map[string][]string{
		"carrier": uniqueNonEmpty(events, func(e *event.Event) string { return e.Carrier }),
		"driver":  uniqueNonEmpty(events, func(e *event.Event) string { return e.Driver }),
		"vehicle": uniqueNonEmpty(events, func(e *event.Event) string { return e.Vehicle }),
		"device":  uniqueNonEmpty(events, func(e *event.Event) string { return e.Device }),
	}

	existence := make(map[string]map[string]bool, len(kinds))

	for kind, ids := range kinds {
		if len(ids) == 0 {
			existence[kind] = map[string]bool{}

			continue
		}

		found, err := resolver.BulkExists(ctx, kind, ids)
		if err != nil {
			// A resolver failure degrades to fail-open regardless of
			// StrictMode: rejecting an entire batch because reference
			// data is temporarily unreachable is worse than admitting
			// events that later turn out unresolved.
			degraded := make(map[string]bool, len(ids))
			for _, id := range ids {
				degraded[id] = true
			}

			existence[kind] = degraded

			continue
		}

		existence[kind] = found
	}

	for i, e := range events {
		result := Result{Valid: true}

		checkRef(&result, cfg, existence["carrier"], "carrier", e.Carrier)
		checkRef(&result, cfg, existence["driver"], "driver", e.Driver)
		checkRef(&result, cfg, existence["vehicle"], "vehicle", e.Vehicle)
		checkRef(&result, cfg, existence["device"], "device", e.Device)

		results[i] = result
	}

	return results
}

// checkRef records a field error when id is non-empty, absent from
// found, and StrictMode requires rejection.
func checkRef(result *Result, cfg Layer3Config, found map[string]bool, field, id string) {
	if id == "" || found[id] {
		return
	}

	if !cfg.StrictMode {
		return
	}

	result.addError(field, "unresolved", fmt.Sprintf("%s %q not found in reference data", field, id))
}

// uniqueNonEmpty collects the distinct non-empty values of extract across
// events, for a single bulk lookup per reference kind.
func uniqueNonEmpty(events []*event.Event, extract func(*event.Event) string) []string {
	seen := make(map[string]bool)

	var ids []string

	for _, e := range events {
		id := extract(e)
		if id == "" || seen[id] {
			continue
		}

		seen[id] = true

		ids = append(ids, id)
	}

	return ids
}
