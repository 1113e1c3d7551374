package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// UnknownLocation is the low-confidence placeholder some providers send
// instead of a station name.
const UnknownLocation = "Unknown"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RawRecord is a provider-tagged observation as handed over by the ingestion
// layer. Pointer fields distinguish "absent" from zero.
type RawRecord struct {
	Provider     string    `json:"provider,omitempty"`
	Source       string    `json:"source"`
	Gas          string    `json:"gas"`
	Lat          *float64  `json:"lat"`
	Lon          *float64  `json:"lon"`
	Value        *float64  `json:"value"`
	Unit         string    `json:"unit,omitempty"`
	LocationName string    `json:"location_name,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitzero"`
}

// Float returns a pointer to v. It keeps RawRecord literals short.
func Float(v float64) *float64 {
	return &v
}

// Status is the fusion outcome of a single record.
type Status string

const (
	StatusAccepted    Status = "accepted"
	StatusQuarantined Status = "quarantined"
	StatusRejected    Status = "rejected"
)

// Measurement is one canonical observation. Measurements are never mutated
// after ingestion.
type Measurement struct {
	ID           string    `json:"id"`
	Seq          uint64    `json:"seq"`
	BatchID      string    `json:"batch_id"`
	Timestamp    time.Time `json:"timestamp"`
	Geo          Geo       `json:"geo"`
	Gas          Gas       `json:"gas"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit"`
	Source       Source    `json:"source"`
	Provider     string    `json:"provider,omitempty"`
	LocationName string    `json:"location_name,omitempty"`
	Status       Status    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Category     Category  `json:"category"`
	Color        Color     `json:"color"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// Valid reports whether m may feed the display layer and the estimator.
func (m Measurement) Valid() bool {
	return m.Status == StatusAccepted
}

// Key groups measurements that describe the same coordinate and gas.
type Key struct {
	Lat float64
	Lon float64
	Gas Gas
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%g,%g", k.Gas, k.Lat, k.Lon)
}

// Key returns the deduplication key of m at the given decimal precision.
func (m Measurement) Key(precision int) Key {
	return Key{Lat: Round(m.Geo.Lat, precision), Lon: Round(m.Geo.Lon, precision), Gas: m.Gas}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// measurementID produces a deterministic ID from the observation content so
// re-ingesting the same record yields the same ID.
func measurementID(src Source, provider string, gas Gas, g Geo, ts time.Time, value float64) string {
	input := fmt.Sprintf("%s|%s|%s|%.6f|%.6f|%s|%g", src, provider, gas, g.Lat, g.Lon, ts.UTC().Format(time.RFC3339Nano), value)
	hash := sha256.Sum256([]byte(input))
	return string(gas) + "-" + hex.EncodeToString(hash[:8])
}

// ProviderBatch is the output of one provider fetch. Err is set when the
// provider failed; Records may still hold what was fetched before the
// failure.
type ProviderBatch struct {
	Provider string
	Records  []RawRecord
	Err      error
}
