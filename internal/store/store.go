// Package store is the Measurement Store: the single owner of observation
// data. Ingestion validates raw records, tags them with their source and
// appends them to a new immutable snapshot that replaces the previous one
// atomically.
package store

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// DefaultPrecision is the default number of decimals in deduplication keys.
const DefaultPrecision = 4

// Options configure validation and deduplication.
type Options struct {
	Precision int
	Rules     domain.Rules
}

// Store holds canonical measurements. Reads are lock-free against the
// current snapshot; ingestions are serialized.
type Store struct {
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	seq  uint64
	snap atomic.Pointer[Snapshot]
}

// New creates an empty store.
func New(opts Options, logger *slog.Logger) *Store {
	if opts.Precision <= 0 {
		opts.Precision = DefaultPrecision
	}
	s := &Store{opts: opts, logger: logger}
	s.snap.Store(newSnapshot(0, opts.Precision, nil))
	return s
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Ingest validates and appends one batch of raw records.
func (s *Store) Ingest(records []domain.RawRecord) FusionReport {
	return s.IngestBatches(domain.ProviderBatch{Records: records})
}

// IngestBatches validates and appends the records of several provider
// batches as a single atomic update. Failed providers are reported, and any
// records they delivered before failing are still ingested.
func (s *Store) IngestBatches(batches ...domain.ProviderBatch) FusionReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := FusionReport{
		BatchID:   uuid.NewString(),
		StartedAt: domain.Now(),
		Sources:   make(map[domain.Source]SourceCounts),
		Reasons:   make(map[string]int),
	}

	prev := s.snap.Load()
	seen := make(map[domain.Key]struct{}, prev.Len())
	for _, m := range prev.measurements {
		if m.Valid() {
			seen[m.Key(s.opts.Precision)] = struct{}{}
		}
	}

	next := make([]domain.Measurement, len(prev.measurements), len(prev.measurements)+countRecords(batches))
	copy(next, prev.measurements)

	for _, b := range batches {
		if b.Err != nil {
			report.Failures = append(report.Failures, ProviderFailure{
				Provider: b.Provider,
				Error:    b.Err.Error(),
				Partial:  len(b.Records),
			})
			s.logger.Warn("provider failed",
				"provider", b.Provider,
				"partial_records", len(b.Records),
				"error", b.Err,
			)
		}
		for _, rec := range b.Records {
			if rec.Provider == "" {
				rec.Provider = b.Provider
			}
			m, err := domain.Normalize(rec, s.opts.Rules)
			report.count(m.Source, m.Status)
			if err != nil {
				report.Reasons[reason(err)]++
			}
			if m.Status == domain.StatusRejected {
				s.logger.Debug("record rejected", "provider", rec.Provider, "error", err)
				continue
			}

			s.seq++
			m.Seq = s.seq
			m.BatchID = report.BatchID
			if m.Valid() {
				k := m.Key(s.opts.Precision)
				if _, dup := seen[k]; dup {
					report.Duplicates++
				}
				seen[k] = struct{}{}
			}
			next = append(next, m)
			report.Added = append(report.Added, m)
		}
	}

	snap := newSnapshot(prev.version+1, s.opts.Precision, next)
	s.snap.Store(snap)

	report.StoreSize = snap.Len()
	report.FinishedAt = domain.Now()
	totals := report.Totals()
	s.logger.Info("batch ingested",
		"batch_id", report.BatchID,
		"accepted", totals.Accepted,
		"quarantined", totals.Quarantined,
		"rejected", totals.Rejected,
		"duplicates", report.Duplicates,
		"provider_failures", len(report.Failures),
		"store_size", report.StoreSize,
	)
	return report
}

// Restore replaces the store contents with previously persisted
// measurements, for example after a restart. Sequence numbering resumes
// after the highest restored Seq.
func (s *Store) Restore(ms []domain.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Measurement, len(ms))
	copy(out, ms)
	slices.SortStableFunc(out, func(a, b domain.Measurement) int { return cmp.Compare(a.Seq, b.Seq) })
	var maxSeq uint64
	for _, m := range out {
		maxSeq = max(maxSeq, m.Seq)
	}
	s.seq = max(s.seq, maxSeq)

	prev := s.snap.Load()
	s.snap.Store(newSnapshot(prev.version+1, s.opts.Precision, out))
	s.logger.Info("store restored", "measurements", len(out))
}

func countRecords(batches []domain.ProviderBatch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Records)
	}
	return n
}

func reason(err error) string {
	var recErr *domain.RecordError
	if errors.As(err, &recErr) {
		return recErr.Reason
	}
	return err.Error()
}
