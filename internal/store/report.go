package store

import (
	"time"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// SourceCounts tallies record outcomes for one source.
type SourceCounts struct {
	Accepted    int `json:"accepted"`
	Quarantined int `json:"quarantined"`
	Rejected    int `json:"rejected"`
}

// Total returns the number of records seen for the source.
func (c SourceCounts) Total() int {
	return c.Accepted + c.Quarantined + c.Rejected
}

// ProviderFailure records a provider that failed during the batch.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
	// Partial is the number of records the provider delivered before failing.
	Partial int `json:"partial"`
}

// FusionReport summarizes one ingestion. Ingestion never fails as a whole;
// every per-record and per-provider problem is counted here instead.
type FusionReport struct {
	BatchID    string                         `json:"batch_id"`
	StartedAt  time.Time                      `json:"started_at"`
	FinishedAt time.Time                      `json:"finished_at"`
	Sources    map[domain.Source]SourceCounts `json:"sources"`
	Failures   []ProviderFailure              `json:"provider_failures,omitempty"`
	// Reasons counts rejection and quarantine reasons.
	Reasons map[string]int `json:"reasons,omitempty"`
	// Duplicates counts accepted records whose deduplication key was already
	// present. They are retained, not merged.
	Duplicates int `json:"duplicates"`
	StoreSize  int `json:"store_size"`

	// Added holds the measurements this batch appended, in sequence order.
	Added []domain.Measurement `json:"-"`
}

// Totals sums the per-source counts.
func (r FusionReport) Totals() SourceCounts {
	var t SourceCounts
	for _, c := range r.Sources {
		t.Accepted += c.Accepted
		t.Quarantined += c.Quarantined
		t.Rejected += c.Rejected
	}
	return t
}

func (r *FusionReport) count(src domain.Source, status domain.Status) {
	c := r.Sources[src]
	switch status {
	case domain.StatusAccepted:
		c.Accepted++
	case domain.StatusQuarantined:
		c.Quarantined++
	default:
		c.Rejected++
	}
	r.Sources[src] = c
}
