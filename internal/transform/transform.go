// Package transform converts raw KPM33B meter messages into the
// simplified records published to the central broker.
//
// The functions are pure: no I/O, deterministic, safe to call from any
// goroutine. Raw input is the decoded JSON object from the internal
// broker; output records serialize to exactly {id, time, measurement}
// with absent source fields mapped to JSON null.
package transform

import (
	"errors"
	"fmt"
)

// Raw message field names on the internal broker.
const (
	fieldID    = "id"
	fieldTime  = "time"
	fieldIsend = "isend"

	// fieldPower is the seconds-level active power tag (kW).
	fieldPower = "zyggl"

	// fieldEnergy is the minutes-level cumulative energy tag (kWh).
	fieldEnergy = "zygsz"
)

// singlePartSentinel marks a payload as complete, single-part data.
const singlePartSentinel = "1"

// ErrSplitPayload is returned when a message is flagged as one part of
// a multi-part transmission. Split data is not supported for the
// KPM33B; such messages are rejected, never reassembled.
var ErrSplitPayload = errors.New("transform: split payload not supported")

// Raw is the untyped mapping decoded from an inbound message body.
type Raw map[string]any

// RateRecord is the simplified seconds-level telemetry shape.
// Fields hold the raw values verbatim; a missing source tag marshals
// to null rather than being dropped or rejected.
type RateRecord struct {
	ID          any `json:"id"`
	Time        any `json:"time"`
	ActivePower any `json:"active_power"`
}

// EnergyRecord is the simplified minutes-level telemetry shape.
type EnergyRecord struct {
	ID           any `json:"id"`
	Time         any `json:"time"`
	ActiveEnergy any `json:"active_energy"`
}

// Rate transforms an MQTT_RT_DATA (seconds-level) message.
//
// Returns ErrSplitPayload when the completeness marker is absent or not
// equal to the single-part sentinel.
func Rate(raw Raw) (RateRecord, error) {
	if err := validateSinglePart(raw); err != nil {
		return RateRecord{}, err
	}
	return RateRecord{
		ID:          raw[fieldID],
		Time:        raw[fieldTime],
		ActivePower: raw[fieldPower],
	}, nil
}

// Cumulative transforms an MQTT_ENY_NOW (minutes-level) message.
//
// Returns ErrSplitPayload when the completeness marker is absent or not
// equal to the single-part sentinel.
func Cumulative(raw Raw) (EnergyRecord, error) {
	if err := validateSinglePart(raw); err != nil {
		return EnergyRecord{}, err
	}
	return EnergyRecord{
		ID:           raw[fieldID],
		Time:         raw[fieldTime],
		ActiveEnergy: raw[fieldEnergy],
	}, nil
}

// validateSinglePart rejects records whose isend marker does not equal
// the single-part sentinel value.
func validateSinglePart(raw Raw) error {
	isend, ok := raw[fieldIsend].(string)
	if !ok || isend != singlePartSentinel {
		return fmt.Errorf("%w: isend=%v", ErrSplitPayload, raw[fieldIsend])
	}
	return nil
}

// DeviceID returns the record's meter ID as a string, or "unknown" when
// the id field is absent or not a string. Callers use the result for
// topic construction and discovery gating.
func DeviceID(id any) string {
	s, ok := id.(string)
	if !ok || s == "" {
		return "unknown"
	}
	return s
}
