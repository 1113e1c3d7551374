package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from a source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// EnvelopeKind tells measurement batches apart from weather updates.
type EnvelopeKind string

const (
	EnvelopeMeasurements EnvelopeKind = "measurements"
	EnvelopeWeather      EnvelopeKind = "weather"
)

// Envelope is the wire form of one provider batch. A provider that failed
// upstream publishes an envelope with Error set and no records so the
// outage is counted rather than silently absent.
type Envelope struct {
	Kind       EnvelopeKind       `json:"kind"`
	Provider   string             `json:"provider"`
	Records    []RawRecord        `json:"records,omitempty"`
	Conditions []WeatherCondition `json:"conditions,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// DecodeEnvelope deserializes a RawEvent's value into an Envelope.
// A missing kind defaults to measurements.
func DecodeEnvelope(raw RawEvent) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw.Value, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Kind {
	case "":
		env.Kind = EnvelopeMeasurements
	case EnvelopeMeasurements, EnvelopeWeather:
	default:
		return Envelope{}, fmt.Errorf("decode envelope: unknown kind %q", env.Kind)
	}
	if env.Provider == "" {
		env.Provider = raw.Headers["provider"]
	}
	return env, nil
}

// OutputEvent is the serialized form destined for the alert topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SerializeWarning converts a warning to an OutputEvent keyed by its ID.
func SerializeWarning(w Warning) (OutputEvent, error) {
	value, err := json.Marshal(w)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("marshal warning: %w", err)
	}
	return OutputEvent{
		Key:   []byte(w.ID),
		Value: value,
		Headers: map[string]string{
			"kind":     string(w.Kind),
			"severity": string(w.Severity),
			"gas":      string(w.Gas),
		},
	}, nil
}
