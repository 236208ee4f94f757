package validator

import (
	"testing"

	"github.com/eld-core/ingestor/internal/event"
)

func validShapeEvent() *event.Event {
	lat, lon := 41.8781, -87.6298

	return &event.Event{
		Carrier: "carrier-1", Driver: "driver-1", Vehicle: "vehicle-1", Device: "device-1",
		LogPeriod:    "2026-07-30",
		EventType:    event.TypeDutyStatusChange,
		EventSubType: 1,
		RecordStatus: event.StatusActive,
		RecordOrigin: event.OriginDriver,
		EventDate:    "073026",
		EventTime:    "140000",
		Latitude:     &lat,
		Longitude:    &lon,
	}
}

func TestValidateShape_Valid(t *testing.T) {
	result := Result{Valid: true}
	ValidateShape(validShapeEvent(), &result)

	if !result.Valid {
		t.Errorf("expected valid, got errors: %+v", result.Errors)
	}
}

func TestValidateShape_Nil(t *testing.T) {
	result := Result{Valid: true}
	ValidateShape(nil, &result)

	if result.Valid {
		t.Error("expected nil event to be invalid")
	}
}

func TestValidateShape_MissingRequiredFields(t *testing.T) {
	result := Result{Valid: true}
	ValidateShape(&event.Event{}, &result)

	if result.Valid {
		t.Fatal("expected empty event to be invalid")
	}

	fields := map[string]bool{}
	for _, e := range result.Errors {
		fields[e.Field] = true
	}

	for _, want := range []string{"carrier", "vehicle", "device", "log_period", "event_type"} {
		if !fields[want] {
			t.Errorf("expected error on field %q, got %+v", want, result.Errors)
		}
	}
}

func TestValidateShape_DriverOptionalWhenUnidentified(t *testing.T) {
	e := validShapeEvent()
	e.Driver = ""
	e.RecordOrigin = event.OriginUnidentified

	result := Result{Valid: true}
	ValidateShape(e, &result)

	if !result.Valid {
		t.Errorf("expected unidentified-origin event without driver to be valid, got %+v", result.Errors)
	}
}

func TestValidateShape_InvalidSubType(t *testing.T) {
	e := validShapeEvent()
	e.EventSubType = 99

	result := Result{Valid: true}
	ValidateShape(e, &result)

	if result.Valid {
		t.Error("expected invalid sub-type to fail shape validation")
	}
}

func TestValidateShape_BadDateFormat(t *testing.T) {
	e := validShapeEvent()
	e.EventDate = "2026-07-30"

	result := Result{Valid: true}
	ValidateShape(e, &result)

	if result.Valid {
		t.Error("expected non-MMDDYY date to fail shape validation")
	}
}

func TestValidateShape_NegativeMiles(t *testing.T) {
	e := validShapeEvent()
	e.AccumulatedVehicleMiles = -1

	result := Result{Valid: true}
	ValidateShape(e, &result)

	if result.Valid {
		t.Error("expected negative odometer reading to fail shape validation")
	}
}

func TestValidateShape_LocationDescriptionSatisfiesRequirement(t *testing.T) {
	e := validShapeEvent()
	e.Latitude = nil
	e.Longitude = nil
	e.LocationDescription = "I-80 mile marker 142"

	result := Result{Valid: true}
	ValidateShape(e, &result)

	if !result.Valid {
		t.Errorf("expected location description to satisfy location requirement, got %+v", result.Errors)
	}
}

func TestValidateShape_OutOfRangeCoordinates(t *testing.T) {
	e := validShapeEvent()
	badLat := 95.0
	e.Latitude = &badLat

	result := Result{Valid: true}
	ValidateShape(e, &result)

	if result.Valid {
		t.Error("expected out-of-range latitude to fail shape validation")
	}
}
