// Command validate replays an envelope fixture through the real fusion engine
// and checks the properties every refresh must satisfy: record accounting,
// classification, quarantine isolation, interpolation bounds, hotspot
// ranking, forecast shape, and warning ordering.
//
// Usage:
//
//	go run ./cmd/validate -envelopes data/mock/envelopes.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/air-quality-fusion/internal/config"
	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/forecast"
	"github.com/couchcryptid/air-quality-fusion/internal/fusion"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
	"github.com/couchcryptid/air-quality-fusion/internal/pipeline"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("envelopes", "data/mock/envelopes.json", "path to the envelope fixture")
	location := flag.String("forecast-location", "Delhi", "location to forecast")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*path, *location))
}

func run(path, location string) int {
	// Match the genmock clock so timestamps and IDs are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== Air Quality Fusion Validation ===")
	fmt.Println()

	envelopes, err := loadEnvelopes(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load envelopes: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	rules := domain.Rules{Ceiling: cfg.ImplausibleCeiling, Area: cfg.AreaOfInterest}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	engine := fusion.New(fusion.Config{
		Store: store.Options{Precision: cfg.DedupPrecision, Rules: rules},
	}, fusion.Deps{Logger: logger, Metrics: metrics})

	loader := pipeline.NewLoader(engine, nil, logger, metrics)
	if err := loader.LoadBatch(context.Background(), envelopes); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load batch: %v\n", err)
		return 1
	}
	snap := engine.Snapshot()

	phases := []*phase{
		validateAccounting(envelopes, rules, snap),
		validateClassification(snap),
		validateQuarantine(snap),
		validateEstimates(engine, snap),
		validateHotspots(engine, snap),
		validateForecast(engine, location),
		validateWarnings(engine),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Envelopes: %d, stored measurements: %d, quarantined: %d\n",
		len(envelopes), snap.Len(), len(snap.Quarantined()))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadEnvelopes(path string) ([]domain.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	envelopes := make([]domain.Envelope, 0, len(raw))
	for i, r := range raw {
		env, err := domain.DecodeEnvelope(domain.RawEvent{Value: r})
		if err != nil {
			return nil, fmt.Errorf("envelope %d: %w", i, err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

// ── Phases ──

// validateAccounting checks that every record is either stored or rejected
// and that sequence numbers are strictly increasing.
func validateAccounting(envelopes []domain.Envelope, rules domain.Rules, snap *store.Snapshot) *phase {
	p := &phase{name: "Record accounting"}

	var records, rejected int
	for _, env := range envelopes {
		for _, rec := range env.Records {
			records++
			if m, _ := domain.Normalize(rec, rules); m.Status == domain.StatusRejected {
				rejected++
			}
		}
	}
	if got := snap.Len() + rejected; got != records {
		p.errorf("stored %d + rejected %d != %d records", snap.Len(), rejected, records)
	}

	var last uint64
	for i, m := range snap.All() {
		if i > 0 && m.Seq <= last {
			p.errorf("seq %d follows %d", m.Seq, last)
		}
		last = m.Seq
	}
	return p
}

// validateClassification checks stored categories against the breakpoint
// tables and that no stored value is negative. Quarantined measurements
// carry the unknown category.
func validateClassification(snap *store.Snapshot) *phase {
	p := &phase{name: "Classification"}
	for _, m := range snap.All() {
		if m.Value < 0 {
			p.errorf("%s: negative value %g stored", m.ID, m.Value)
		}
		if !m.Valid() {
			if m.Category != domain.CategoryUnknown {
				p.errorf("%s: quarantined measurement classified %s", m.ID, m.Category)
			}
			continue
		}
		cat, color := domain.Classify(m.Gas, m.Value)
		if cat != m.Category || color != m.Color {
			p.errorf("%s: %s %g classified %s, want %s", m.ID, m.Gas, m.Value, m.Category, cat)
		}
	}
	return p
}

// validateQuarantine checks that quarantined measurements never reach the
// valid views.
func validateQuarantine(snap *store.Snapshot) *phase {
	p := &phase{name: "Quarantine isolation"}
	quarantined := make(map[string]bool)
	for _, m := range snap.Quarantined() {
		if m.Reason == "" {
			p.errorf("%s: quarantined without reason", m.ID)
		}
		quarantined[m.ID] = true
	}
	for _, g := range domain.Gases {
		for _, m := range snap.Valid(g) {
			if quarantined[m.ID] {
				p.errorf("%s: quarantined measurement in valid %s view", m.ID, g)
			}
		}
	}
	return p
}

// validateEstimates checks that every city estimate lies within the range of
// the fused points it was interpolated from.
func validateEstimates(engine *fusion.Engine, snap *store.Snapshot) *phase {
	p := &phase{name: "Spatial estimates"}
	for _, g := range domain.Gases {
		points := snap.Fused(g)
		if len(points) == 0 {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, pt := range points {
			lo, hi = math.Min(lo, pt.Value), math.Max(hi, pt.Value)
		}
		for _, place := range domain.Places {
			res, err := engine.Estimate(context.Background(), g, place.Geo.Lat, place.Geo.Lon)
			if err != nil {
				p.errorf("%s at %s: %v", g, place.Name, err)
				continue
			}
			if res.Value < lo-1e-9 || res.Value > hi+1e-9 {
				p.errorf("%s at %s: %g outside [%g, %g]", g, place.Name, res.Value, lo, hi)
			}
			if len(res.Neighbors) == 0 {
				p.errorf("%s at %s: no neighbors reported", g, place.Name)
			}
		}
	}
	return p
}

// validateHotspots checks ranking order and member accounting.
func validateHotspots(engine *fusion.Engine, snap *store.Snapshot) *phase {
	p := &phase{name: "Hotspot ranking"}
	for _, g := range domain.Gases {
		if snap.CountValid(g) == 0 {
			continue
		}
		spots, err := engine.DetectHotspots(context.Background(), g, 5)
		if err != nil {
			p.errorf("%s: %v", g, err)
			continue
		}
		members := 0
		for i, s := range spots {
			members += s.MemberCount
			if s.Rank != i+1 {
				p.errorf("%s: hotspot %d has rank %d", g, i, s.Rank)
			}
			if i > 0 && s.AvgValue > spots[i-1].AvgValue {
				p.errorf("%s: rank %d avg %g above rank %d avg %g", g, s.Rank, s.AvgValue, spots[i-1].Rank, spots[i-1].AvgValue)
			}
			if s.MaxValue < s.AvgValue {
				p.errorf("%s: rank %d max below avg", g, s.Rank)
			}
		}
		if members > snap.CountValid(g) {
			p.errorf("%s: %d cluster members exceed %d valid points", g, members, snap.CountValid(g))
		}
	}
	return p
}

// validateForecast checks horizon shape and that a repeated request is
// served from the cache.
func validateForecast(engine *fusion.Engine, location string) *phase {
	p := &phase{name: "Forecast"}
	fc, err := engine.Forecast(context.Background(), location, domain.GasPM25)
	if err != nil {
		p.errorf("%s: %v", location, err)
		return p
	}
	if len(fc.Steps) != forecast.Horizon {
		p.errorf("%d steps, want %d", len(fc.Steps), forecast.Horizon)
	}
	for i, s := range fc.Steps {
		if s.Offset != i+1 {
			p.errorf("step %d has offset %d", i, s.Offset)
		}
		if s.Value < 0 {
			p.errorf("step %d negative: %g", i, s.Value)
		}
	}

	again, err := engine.Forecast(context.Background(), location, domain.GasPM25)
	if err != nil {
		p.errorf("repeat: %v", err)
		return p
	}
	if again.Model != forecast.StatusCached {
		p.errorf("repeat served %s, want %s", again.Model, forecast.StatusCached)
	}
	return p
}

// validateWarnings checks ordering and ID uniqueness.
func validateWarnings(engine *fusion.Engine) *phase {
	p := &phase{name: "Dispersion warnings"}
	for _, g := range domain.Gases {
		warnings := engine.ComputeWarnings(context.Background(), g)
		seen := make(map[string]bool, len(warnings))
		for i, w := range warnings {
			if seen[w.ID] {
				p.errorf("%s: duplicate warning id %s", g, w.ID)
			}
			seen[w.ID] = true
			if i > 0 && w.Category > warnings[i-1].Category {
				p.errorf("%s: warning %d more severe than its predecessor", g, i)
			}
			if w.Anchor == nil {
				p.errorf("%s: warning %s has no anchor", g, w.ID)
			}
		}
	}
	return p
}
