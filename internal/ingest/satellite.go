package ingest

import (
	"context"
	"fmt"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// GridSampler reads a column-derived concentration for one grid cell.
// ok is false when the cell has no usable pixel (cloud cover, swath gap).
type GridSampler interface {
	SampleCell(ctx context.Context, gas domain.Gas, cell domain.GridCell) (value float64, ok bool, err error)
}

// GridProvider samples a regular grid over the area of interest.
type GridProvider struct {
	name    string
	cells   []domain.GridCell
	gases   []domain.Gas
	sampler GridSampler
}

// NewGridProvider creates a provider over a floor(sqrt(points))² grid.
func NewGridProvider(name string, area domain.AreaOfInterest, points int, gases []domain.Gas, sampler GridSampler) *GridProvider {
	return &GridProvider{name: name, cells: area.Grid(points), gases: gases, sampler: sampler}
}

func (p *GridProvider) Name() string { return p.name }

// Fetch samples every cell for every gas. The first sampler error stops the
// fetch and is returned with the records gathered so far.
func (p *GridProvider) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	for _, gas := range p.gases {
		for i, cell := range p.cells {
			if err := ctx.Err(); err != nil {
				return records, err
			}
			v, ok, err := p.sampler.SampleCell(ctx, gas, cell)
			if err != nil {
				return records, fmt.Errorf("%s: sample %s cell %d: %w", p.name, gas, i, err)
			}
			if !ok {
				continue
			}
			records = append(records, domain.RawRecord{
				Source:       string(domain.SourceSatelliteGrid),
				Gas:          string(gas),
				Lat:          domain.Float(cell.Center.Lat),
				Lon:          domain.Float(cell.Center.Lon),
				Value:        domain.Float(v),
				Unit:         gas.Unit(),
				LocationName: domain.PlaceLabel(cell.Center),
				Timestamp:    domain.Now(),
			})
		}
	}
	return records, nil
}

// OpticalDepthSampler reads aerosol optical depth for one grid cell.
type OpticalDepthSampler interface {
	SampleAOD(ctx context.Context, cell domain.GridCell) (aod float64, ok bool, err error)
}

// ProxyProvider derives PM2.5 from aerosol optical depth. Factor is an
// injected approximation, not a calibrated conversion.
type ProxyProvider struct {
	name    string
	cells   []domain.GridCell
	factor  float64
	sampler OpticalDepthSampler
}

// NewProxyProvider creates a provider converting AOD × factor into PM2.5.
func NewProxyProvider(name string, area domain.AreaOfInterest, points int, factor float64, sampler OpticalDepthSampler) *ProxyProvider {
	return &ProxyProvider{name: name, cells: area.Grid(points), factor: factor, sampler: sampler}
}

func (p *ProxyProvider) Name() string { return p.name }

func (p *ProxyProvider) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	for i, cell := range p.cells {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		aod, ok, err := p.sampler.SampleAOD(ctx, cell)
		if err != nil {
			return records, fmt.Errorf("%s: sample cell %d: %w", p.name, i, err)
		}
		if !ok {
			continue
		}
		records = append(records, domain.RawRecord{
			Source:       string(domain.SourceSatelliteProxy),
			Gas:          string(domain.GasPM25),
			Lat:          domain.Float(cell.Center.Lat),
			Lon:          domain.Float(cell.Center.Lon),
			Value:        domain.Float(aod * p.factor),
			Unit:         domain.GasPM25.Unit(),
			LocationName: domain.PlaceLabel(cell.Center),
			Timestamp:    domain.Now(),
		})
	}
	return records, nil
}
