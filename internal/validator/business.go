package validator

import (
	"time"

	"github.com/eld-core/ingestor/internal/event"
)

// Clock-skew tolerance windows for Layer 2 timestamp bounds.
const (
	maxFutureSkew = 5 * time.Minute
	maxPastWindow = 14 * 24 * time.Hour
)

// ValidateBusinessRules evaluates synchronous, pure business rules that
// don't require external lookups: timestamp bounds relative to wall-clock
// time, and — when preceding is non-empty — batch monotonicity of
// sequence ids and event times within the same scope.
func ValidateBusinessRules(e *event.Event, preceding []*event.Event, result *Result) {
	if e.Timestamp.IsZero() {
		result.addError("timestamp", "required", "timestamp could not be derived from event_date/event_time/tz_offset")

		return
	}

	now := time.Now()

	if e.Timestamp.After(now.Add(maxFutureSkew)) {
		result.addError("timestamp", "future", "event timestamp is more than 5 minutes in the future")
	}

	if e.Timestamp.Before(now.Add(-maxPastWindow)) {
		result.addError("timestamp", "stale", "event timestamp is more than 14 days in the past")
	}

	validateMonotonicity(e, preceding, result)
}

// validateMonotonicity checks that, within the same (device, log-period)
// scope, e's sequence id and timestamp are not lower than an
// already-accepted event earlier in the same batch.
func validateMonotonicity(e *event.Event, preceding []*event.Event, result *Result) {
	if e.SequenceID == 0 {
		// Not yet allocated; monotonicity is enforced by the sequencer at
		// allocation time instead.
		return
	}

	scope := e.Scope()

	for _, p := range preceding {
		if p.Scope() != scope {
			continue
		}

		if p.SequenceID != 0 && p.SequenceID >= e.SequenceID {
			result.addError("sequence_id", "monotonicity",
				"sequence id must increase within a batch for the same device and log period")

			return
		}

		if p.Timestamp.After(e.Timestamp) {
			result.addError("event_time", "monotonicity",
				"event time must not precede an earlier event in the same batch and scope")

			return
		}
	}
}
