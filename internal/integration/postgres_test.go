//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-fusion/internal/adapter/postgres"
	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/fusion"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

var observedAt = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

func groundRecord(gas string, lat, lon, value float64, name string) domain.RawRecord {
	return domain.RawRecord{
		Provider:     "cpcb",
		Source:       "ground_station",
		Gas:          gas,
		Lat:          domain.Float(lat),
		Lon:          domain.Float(lon),
		Value:        domain.Float(value),
		LocationName: name,
		Timestamp:    observedAt,
	}
}

func newEngine(deps fusion.Deps) *fusion.Engine {
	deps.Logger = discardLogger()
	deps.Metrics = observability.NewMetricsForTesting()
	return fusion.New(fusion.Config{Store: store.Options{Rules: domain.Rules{Area: domain.IndiaBounds}}}, deps)
}

func TestPostgresSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	domain.SetClock(clockwork.NewFakeClockAt(observedAt.Add(time.Hour)))
	t.Cleanup(func() { domain.SetClock(nil) })

	db, err := postgres.Open(ctx, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.CheckReadiness(ctx))

	co := groundRecord("co", 28.6, 77.2, 900, "Delhi")
	co.Unit = "µg/m³"
	first := newEngine(fusion.Deps{Snapshots: db})
	report := first.Ingest(ctx, []domain.RawRecord{
		groundRecord("pm25", 28.6, 77.2, 180, "Delhi"),
		groundRecord("pm25", 19.07, 72.87, 95, "Mumbai"),
		groundRecord("pm25", 12.97, 77.59, 40, "Bangalore"),
		groundRecord("pm25", 22.57, 88.36, 120, "Unknown"),
		groundRecord("pm25", 22.57, 88.36, -1, "Kolkata"),
		co,
	})
	require.Equal(t, 4, report.Totals().Accepted)
	require.Equal(t, 1, report.Totals().Quarantined)

	loaded, err := db.LoadMeasurements(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 5, "rejected records are not persisted")

	want := report.Added
	for i, m := range loaded {
		assert.Equal(t, want[i].Seq, m.Seq)
		assert.Equal(t, want[i].ID, m.ID)
		assert.Equal(t, want[i].Status, m.Status)
		assert.Equal(t, want[i].Reason, m.Reason)
		assert.Equal(t, want[i].Unit, m.Unit)
		assert.Equal(t, want[i].Category, m.Category)
		assert.InDelta(t, want[i].Value, m.Value, 1e-9)
		assert.True(t, want[i].Timestamp.Equal(m.Timestamp))
	}

	// Saving the same measurements again leaves the table unchanged.
	require.NoError(t, db.SaveMeasurements(ctx, report.Added))
	again, err := db.LoadMeasurements(ctx)
	require.NoError(t, err)
	assert.Len(t, again, len(loaded))

	restored := newEngine(fusion.Deps{Snapshots: db})
	require.NoError(t, restored.Restore(ctx))
	require.NoError(t, restored.CheckReadiness(ctx))
	assert.Equal(t, first.Status().Measurements, restored.Status().Measurements)
	assert.Equal(t, first.Status().Quarantined, restored.Status().Quarantined)

	before, err := first.Estimate(ctx, domain.GasPM25, 28.61, 77.21)
	require.NoError(t, err)
	after, err := restored.Estimate(ctx, domain.GasPM25, 28.61, 77.21)
	require.NoError(t, err)
	assert.InDelta(t, before.Value, after.Value, 1e-9)
	assert.Equal(t, before.Category, after.Category)

	coEstimate, err := restored.Estimate(ctx, domain.GasCO, 28.6, 77.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, coEstimate.Value, 1e-9)
	assert.Equal(t, "mg/m³", coEstimate.Unit)
}
