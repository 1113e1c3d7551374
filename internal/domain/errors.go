package domain

import "errors"

var (
	// ErrInsufficientData is returned by queries that have no valid
	// measurements to compute from.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotAvailable is returned when a forecast is requested for an
	// unrecognized location or one without a historical slice.
	ErrNotAvailable = errors.New("not available")

	// ErrProviderUnavailable marks a provider that produced no records.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedRecord marks a raw record missing a coordinate, gas or value.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrQuarantined marks a record that is retained for audit only.
	ErrQuarantined = errors.New("quarantined record")

	ErrUnknownGas = errors.New("unknown gas")
)

// RecordError explains why a raw record was rejected or quarantined.
type RecordError struct {
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	return e.Err.Error() + ": " + e.Reason
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func malformed(reason string) error {
	return &RecordError{Reason: reason, Err: ErrMalformedRecord}
}

func quarantined(reason string) error {
	return &RecordError{Reason: reason, Err: ErrQuarantined}
}
