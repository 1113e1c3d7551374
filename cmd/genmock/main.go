// Command genmock generates a reproducible provider refresh for local runs
// and the validate command. It drives the real ingest providers with seeded
// synthetic samplers and writes the resulting envelopes, one per provider
// plus a weather update, as a JSON array.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/envelopes.json -hours 48 -seed 42
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/air-quality-fusion/internal/config"
	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/ingest"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// refreshTime is the fixed clock all generated records are stamped against.
var refreshTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// gasScale maps a city's PM2.5 baseline to the other station gases.
var gasScale = map[domain.Gas]float64{
	domain.GasPM25: 1,
	domain.GasPM10: 1.8,
	domain.GasNO2:  0.35,
	domain.GasSO2:  0.12,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock/envelopes.json", "output path for the envelope fixture")
	hours := flag.Int("hours", 48, "hours of hourly station history per city")
	seed := flag.Uint64("seed", 42, "random seed")
	gridPoints := flag.Int("grid-points", 64, "satellite grid cells")
	throttle := flag.Bool("throttle", false, "apply STATION_DELAY between station requests")
	flag.Parse()

	if *hours < 1 || *gridPoints < 1 {
		flag.Usage()
		return errors.New("-hours and -grid-points must be positive")
	}

	// Set a fixed clock for reproducible timestamps and IDs.
	clock := clockwork.NewFakeClockAt(refreshTime)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	// Area, AOD factor, station delay and parallelism follow the service
	// configuration so the fixture matches what a deployment would ingest.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	var delay time.Duration
	if *throttle {
		delay = cfg.StationDelay
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	area := cfg.AreaOfInterest

	stations := make([]ingest.Station, len(domain.Places))
	for i, p := range domain.Places {
		stations[i] = ingest.Station{ID: fmt.Sprintf("st-%02d", i+1), Name: p.Name, Geo: p.Geo}
	}

	providers := []ingest.Provider{
		ingest.NewStationProvider("cpcb", stations, &stationHistory{rng: newRand(*seed, 1), hours: *hours}, delay),
		ingest.NewGridProvider("sentinel5p", area, *gridPoints,
			[]domain.Gas{domain.GasNO2, domain.GasSO2, domain.GasCO, domain.GasO3}, &gridSampler{rng: newRand(*seed, 2)}),
		ingest.NewProxyProvider("modis", area, *gridPoints, cfg.AODFactor, &aodSampler{rng: newRand(*seed, 3)}),
		ingest.NewStationProvider("openaq", stations[:2], offlineFetcher{}, delay),
	}

	batches := ingest.NewCollector(providers, cfg.ProviderParallelism, logger).Collect(context.Background())

	envelopes := []domain.Envelope{{
		Kind:       domain.EnvelopeWeather,
		Provider:   "imd",
		Conditions: weather(newRand(*seed, 4)),
	}}
	for _, b := range batches {
		env := domain.Envelope{Kind: domain.EnvelopeMeasurements, Provider: b.Provider, Records: b.Records}
		if b.Err != nil {
			env.Error = b.Err.Error()
		}
		envelopes = append(envelopes, env)
		log.Printf("%s: %d records", b.Provider, len(b.Records))
	}

	if err := writeJSON(*out, envelopes); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(batches, cfg, logger)
	return nil
}

// newRand gives each provider its own stream so output does not depend on
// provider scheduling.
func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// stationHistory produces hourly readings with a diurnal shape around each
// city's baseline. A few readings carry the low-confidence placeholder name
// or a sensor glitch so the fixture exercises quarantine and rejection.
type stationHistory struct {
	rng   *rand.Rand
	hours int
}

func (s *stationHistory) FetchStation(_ context.Context, st ingest.Station) ([]domain.RawRecord, error) {
	place, _ := domain.LookupPlace(st.Name)
	now := domain.Now()

	gases := make([]domain.Gas, 0, len(gasScale))
	for g := range gasScale {
		gases = append(gases, g)
	}
	sort.Slice(gases, func(i, j int) bool { return gases[i] < gases[j] })

	var recs []domain.RawRecord
	for h := s.hours - 1; h >= 0; h-- {
		ts := now.Add(-time.Duration(h) * time.Hour)
		local := ts.Add(5*time.Hour + 30*time.Minute)
		diurnal := 1 + 0.3*math.Cos(2*math.Pi*float64(local.Hour()-8)/24)
		for _, g := range gases {
			v := (place.BaselineAvg + s.rng.NormFloat64()*place.BaselineStd) * diurnal * gasScale[g]
			rec := domain.RawRecord{
				Gas:       string(g),
				Value:     domain.Float(domain.Round(math.Max(v, 1), 1)),
				Timestamp: ts,
			}
			switch r := s.rng.IntN(200); {
			case r == 0:
				rec.LocationName = domain.UnknownLocation
			case r == 1:
				rec.Value = domain.Float(-1)
			}
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// gridSampler mimics column retrievals with roughly 15% cloud cover.
type gridSampler struct {
	rng *rand.Rand
}

func (g *gridSampler) SampleCell(_ context.Context, gas domain.Gas, cell domain.GridCell) (float64, bool, error) {
	if g.rng.Float64() < 0.15 {
		return 0, false, nil
	}
	_, d := domain.NearestPlace(cell.Center)
	urban := math.Exp(-d / 150)
	base := map[domain.Gas]float64{
		domain.GasNO2: 60,
		domain.GasSO2: 25,
		domain.GasCO:  2.5,
		domain.GasO3:  90,
	}[gas]
	v := base * (0.4 + urban) * (0.85 + 0.3*g.rng.Float64())
	return domain.Round(v, 2), true, nil
}

// aodSampler returns aerosol optical depth, higher over the Indo-Gangetic
// plain.
type aodSampler struct {
	rng *rand.Rand
}

func (a *aodSampler) SampleAOD(_ context.Context, cell domain.GridCell) (float64, bool, error) {
	if a.rng.Float64() < 0.2 {
		return 0, false, nil
	}
	aod := 0.25 + 0.02*math.Max(0, cell.Center.Lat-20) + 0.1*a.rng.Float64()
	return domain.Round(aod, 3), true, nil
}

// offlineFetcher simulates a provider outage.
type offlineFetcher struct{}

func (offlineFetcher) FetchStation(context.Context, ingest.Station) ([]domain.RawRecord, error) {
	return nil, errors.New("upstream timeout")
}

// weather pins Delhi to stagnant air and Mumbai to steady rain so both
// dispersion rules fire; the other cities get random breezes.
func weather(rng *rand.Rand) []domain.WeatherCondition {
	now := domain.Now()
	conds := make([]domain.WeatherCondition, 0, len(domain.Places))
	for _, p := range domain.Places {
		c := domain.WeatherCondition{
			Geo:          p.Geo,
			LocationName: p.Name,
			WindSpeed:    domain.Round(6+14*rng.Float64(), 1),
			WindAngle:    domain.Round(360*rng.Float64(), 0),
			ObservedAt:   now,
		}
		switch p.Name {
		case "Delhi":
			c.WindSpeed, c.WindAngle = 2, 90
		case "Mumbai":
			c.Precip, c.Raining = 1.2, true
		}
		conds = append(conds, c)
	}
	return conds
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printStats(batches []domain.ProviderBatch, cfg *config.Config, logger *slog.Logger) {
	st := store.New(store.Options{
		Precision: cfg.DedupPrecision,
		Rules:     domain.Rules{Ceiling: cfg.ImplausibleCeiling, Area: cfg.AreaOfInterest},
	}, logger)
	report := st.IngestBatches(batches...)

	totals := report.Totals()
	fmt.Printf("\nAccepted: %d, quarantined: %d, rejected: %d, duplicates: %d\n",
		totals.Accepted, totals.Quarantined, totals.Rejected, report.Duplicates)
	for _, f := range report.Failures {
		fmt.Printf("Provider failure: %s\n", f.Provider)
	}

	fmt.Println("\nSource shares:")
	for _, s := range st.Snapshot().SourceStats() {
		fmt.Printf("  %-16s %5d (%.1f%%)\n", s.Source, s.Count, s.Percentage)
	}

	fmt.Println("\nPer gas:")
	for _, g := range domain.Gases {
		gs, err := st.Snapshot().Stats(g)
		if err != nil {
			continue
		}
		fmt.Printf("  %-5s n=%-5d mean=%.1f max=%.1f\n", g, gs.Count, gs.Mean, gs.Max)
	}
}
