package domain

import (
	"errors"
	"math"
	"strings"
)

// DefaultImplausibleCeiling is the hard ceiling, in the gas's native unit,
// above which a reading is quarantined.
const DefaultImplausibleCeiling = 1000.0

// Rules control how raw records are validated.
type Rules struct {
	// Ceiling is the implausibility ceiling. Zero uses DefaultImplausibleCeiling.
	Ceiling float64
	// Area bounds the accepted coordinates. The zero value accepts any
	// valid WGS-84 coordinate.
	Area AreaOfInterest
}

// Normalize validates a raw record and converts it to a Measurement.
//
// A record missing a coordinate, gas or value, or carrying an out-of-range
// coordinate, negative value or unknown gas or source, is rejected: the
// returned status is StatusRejected and the error wraps ErrMalformedRecord.
// Values are converted to the gas's native unit before any check; see
// ConvertUnit. A record with a unit that cannot be converted, an absent or
// "Unknown" location name, a value above the ceiling, or a coordinate outside
// the area of interest is quarantined: it is returned with StatusQuarantined,
// CategoryUnknown and an error wrapping ErrQuarantined. Everything else is accepted and classified.
//
// The returned Measurement has no Seq or BatchID; the store assigns them.
func Normalize(rec RawRecord, rules Rules) (Measurement, error) {
	src, err := ParseSource(rec.Source)
	if err != nil {
		return reject(src, malformed("unknown source"))
	}
	if rec.Gas == "" {
		return reject(src, malformed("missing gas"))
	}
	gas, err := ParseGas(rec.Gas)
	if err != nil {
		return reject(src, malformed("unknown gas"))
	}
	if rec.Lat == nil || rec.Lon == nil {
		return reject(src, malformed("missing coordinate"))
	}
	g := Geo{Lat: *rec.Lat, Lon: *rec.Lon}
	if !ValidCoordinate(g) {
		return reject(src, malformed("coordinate out of range"))
	}
	if rec.Value == nil {
		return reject(src, malformed("missing value"))
	}
	value := *rec.Value
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return reject(src, malformed("value is not finite"))
	}
	if value < 0 {
		return reject(src, malformed("negative value"))
	}

	now := Now()
	ts := rec.Timestamp.UTC()
	if rec.Timestamp.IsZero() {
		ts = now
	}
	unit := gas.Unit()
	native, convertible := ConvertUnit(gas, value, rec.Unit)
	if convertible {
		value = native
	} else {
		unit = strings.TrimSpace(rec.Unit)
	}
	name := strings.TrimSpace(rec.LocationName)

	m := Measurement{
		ID:           measurementID(src, rec.Provider, gas, g, ts, value),
		Timestamp:    ts,
		Geo:          g,
		Gas:          gas,
		Value:        value,
		Unit:         unit,
		Source:       src,
		Provider:     rec.Provider,
		LocationName: name,
		IngestedAt:   now,
	}

	reason := quarantineReason(m, rules)
	if !convertible {
		reason = "unknown unit"
	}
	if reason != "" {
		m.Status = StatusQuarantined
		m.Reason = reason
		m.Category = CategoryUnknown
		m.Color = ColorOf(CategoryUnknown)
		return m, quarantined(reason)
	}

	m.Status = StatusAccepted
	m.Category, m.Color = Classify(gas, value)
	return m, nil
}

func quarantineReason(m Measurement, rules Rules) string {
	ceiling := rules.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultImplausibleCeiling
	}
	switch {
	case m.LocationName == "" || strings.EqualFold(m.LocationName, UnknownLocation):
		return "unknown location"
	case m.Value > ceiling:
		return "implausible value"
	case !rules.Area.Contains(m.Geo):
		return "outside area of interest"
	default:
		return ""
	}
}

func reject(src Source, err error) (Measurement, error) {
	return Measurement{Source: src, Status: StatusRejected}, err
}

// IsQuarantined reports whether err marks a quarantined record.
func IsQuarantined(err error) bool {
	return errors.Is(err, ErrQuarantined)
}
