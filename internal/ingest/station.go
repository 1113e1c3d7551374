package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// Station is one ground station to poll.
type Station struct {
	ID   string
	Name string
	Geo  domain.Geo
}

// StationFetcher reads the current observations of one station.
type StationFetcher interface {
	FetchStation(ctx context.Context, st Station) ([]domain.RawRecord, error)
}

// StationProvider polls ground stations one after another with a fixed delay
// between requests, as the upstream feed throttles bursts. Total cost scales
// with station count times delay.
type StationProvider struct {
	name     string
	stations []Station
	fetcher  StationFetcher
	limiter  *rate.Limiter
}

// NewStationProvider creates a provider that waits delay between station
// requests. A zero delay disables throttling.
func NewStationProvider(name string, stations []Station, fetcher StationFetcher, delay time.Duration) *StationProvider {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &StationProvider{
		name:     name,
		stations: stations,
		fetcher:  fetcher,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (p *StationProvider) Name() string { return p.name }

// Fetch polls every station. A failed station is skipped; the records
// fetched so far are returned when the context ends mid-batch. The provider
// reports ErrProviderUnavailable only when every station failed.
func (p *StationProvider) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var (
		records []domain.RawRecord
		errs    []error
	)
	for _, st := range p.stations {
		if err := p.limiter.Wait(ctx); err != nil {
			return records, fmt.Errorf("%s: interrupted after %d records: %w", p.name, len(records), err)
		}
		recs, err := p.fetcher.FetchStation(ctx, st)
		if err != nil {
			errs = append(errs, fmt.Errorf("station %s: %w", st.ID, err))
			continue
		}
		for i := range recs {
			recs[i].Source = string(domain.SourceGroundStation)
			if recs[i].LocationName == "" {
				recs[i].LocationName = st.Name
			}
			if recs[i].Lat == nil || recs[i].Lon == nil {
				recs[i].Lat, recs[i].Lon = domain.Float(st.Geo.Lat), domain.Float(st.Geo.Lon)
			}
		}
		records = append(records, recs...)
	}

	if len(p.stations) > 0 && len(errs) == len(p.stations) {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProviderUnavailable, p.name, errors.Join(errs...))
	}
	return records, nil
}
