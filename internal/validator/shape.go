package validator

import (
	"regexp"

	"github.com/eld-core/ingestor/internal/event"
)

// eventDatePattern matches MMDDYY, the FMCSA date format.
var eventDatePattern = regexp.MustCompile(`^\d{6}$`)

// eventTimePattern matches HHMMSS in 24-hour time.
var eventTimePattern = regexp.MustCompile(`^\d{6}$`)

// ValidateShape checks that e's fields are structurally well-formed:
// required identifiers are present, date/time fields match their fixed
// FMCSA formats, and numeric fields fall within their non-negative
// ranges. It does not evaluate business rules like timestamp bounds,
// which depend on wall-clock time and belong to Layer 2.
func ValidateShape(e *event.Event, result *Result) {
	if e == nil {
		result.addError("event", "required", "event is nil")

		return
	}

	if e.Carrier == "" {
		result.addError("carrier", "required", "carrier is required")
	}

	if e.Driver == "" && e.RecordOrigin != event.OriginUnidentified {
		result.addError("driver", "required", "driver is required unless record origin is unidentified")
	}

	if e.Vehicle == "" {
		result.addError("vehicle", "required", "vehicle is required")
	}

	if e.Device == "" {
		result.addError("device", "required", "device is required")
	}

	if e.LogPeriod == "" {
		result.addError("log_period", "required", "log period is required")
	}

	if !e.EventType.IsValid() {
		result.addError("event_type", "invalid", "event type is not one of the seven declared FMCSA types")
	} else if !e.EventType.ValidSubType(e.EventSubType) {
		result.addError("event_sub_type", "invalid", "sub-type is not valid for this event type")
	}

	if !e.RecordStatus.IsValid() {
		result.addError("record_status", "invalid", "record status must be one of the four declared values")
	}

	if !e.RecordOrigin.IsValid() {
		result.addError("record_origin", "invalid", "record origin must be one of the four declared values")
	}

	if !eventDatePattern.MatchString(e.EventDate) {
		result.addError("event_date", "format", "event date must be MMDDYY")
	}

	if !eventTimePattern.MatchString(e.EventTime) {
		result.addError("event_time", "format", "event time must be HHMMSS")
	}

	if e.AccumulatedVehicleMiles < 0 {
		result.addError("accumulated_vehicle_miles", "range", "accumulated vehicle miles must be non-negative")
	}

	if e.ElapsedEngineHours < 0 {
		result.addError("elapsed_engine_hours", "range", "elapsed engine hours must be non-negative")
	}

	if !e.HasLocation() && e.LocationDescription == "" {
		result.addError("location", "required", "either coordinates or a location description is required")
	}

	if e.HasLocation() {
		if *e.Latitude < -90 || *e.Latitude > 90 {
			result.addError("latitude", "range", "latitude must be between -90 and 90")
		}

		if *e.Longitude < -180 || *e.Longitude > 180 {
			result.addError("longitude", "range", "longitude must be between -180 and 180")
		}
	}
}
