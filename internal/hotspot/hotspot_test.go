package hotspot

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

func ground(lat, lon, value float64, name string) domain.RawRecord {
	return domain.RawRecord{
		Source:       "ground_station",
		Gas:          "pm25",
		Lat:          domain.Float(lat),
		Lon:          domain.Float(lon),
		Value:        domain.Float(value),
		LocationName: name,
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newStore(records ...domain.RawRecord) *store.Store {
	s := store.New(store.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Ingest(records)
	return s
}

func TestDetect_Scenario(t *testing.T) {
	s := newStore(
		ground(28.60, 77.20, 180, "Delhi"),
		ground(19.07, 72.87, 95, "Mumbai"),
		ground(12.97, 77.59, 40, "Bangalore"),
	)

	spots, err := New(DefaultOptions()).Detect(s.Snapshot(), domain.GasPM25, 1)
	require.NoError(t, err)
	require.Len(t, spots, 1)

	top := spots[0]
	assert.Equal(t, 1, top.Rank)
	assert.InDelta(t, 28.60, top.Centroid.Lat, 0.01)
	assert.InDelta(t, 77.20, top.Centroid.Lon, 0.01)
	assert.InDelta(t, 180, top.AvgValue, 1e-9)
	assert.Equal(t, 1, top.MemberCount)
	assert.Equal(t, "Delhi", top.Location)
	assert.Equal(t, domain.CategoryUnhealthy, top.Category)
	assert.Equal(t, "µg/m³", top.Unit)
}

func TestDetect_Errors(t *testing.T) {
	s := newStore(ground(28.6, 77.2, 50, "Unknown"))
	d := New(DefaultOptions())

	_, err := d.Detect(s.Snapshot(), domain.GasPM25, 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = d.Detect(s.Snapshot(), domain.GasPM25, 0)
	assert.ErrorIs(t, err, ErrInvalidTopN)
}

func TestDetect_FewerDistinctPointsThanK(t *testing.T) {
	s := newStore(
		ground(28.6, 77.2, 100, "Delhi"),
		ground(28.6, 77.2, 100, "Delhi"),
		ground(28.6, 77.2, 100, "Delhi"),
	)
	spots, err := New(DefaultOptions()).Detect(s.Snapshot(), domain.GasPM25, 5)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, 3, spots[0].MemberCount)
}

func TestDetect_SeparatesSevereCluster(t *testing.T) {
	var recs []domain.RawRecord
	for i := range 6 {
		off := float64(i) * 0.01
		recs = append(recs,
			ground(28.6+off, 77.2+off, 250+float64(i), "Delhi"),
			ground(12.9+off, 77.5+off, 30+float64(i), "Bangalore"),
		)
	}
	s := newStore(recs...)

	spots, err := New(Options{DefaultClusters: 2}).Detect(s.Snapshot(), domain.GasPM25, 2)
	require.NoError(t, err)
	require.Len(t, spots, 2)
	assert.Equal(t, "Delhi", spots[0].Location)
	assert.Equal(t, 6, spots[0].MemberCount)
	assert.InDelta(t, 252.5, spots[0].AvgValue, 1e-9)
	assert.Equal(t, 255.0, spots[0].MaxValue)
	assert.Equal(t, "Bangalore", spots[1].Location)
	assert.Equal(t, 2, spots[1].Rank)
}

func TestDetect_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var recs []domain.RawRecord
	for i := range 120 {
		recs = append(recs, ground(
			8+rng.Float64()*28,
			69+rng.Float64()*27,
			rng.Float64()*400,
			fmt.Sprintf("Station %d", i%17),
		))
	}
	s := newStore(recs...)
	ms := s.Snapshot().Valid(domain.GasPM25)
	require.Len(t, ms, 120)

	for _, topN := range []int{1, 3, 10, 15, 40} {
		t.Run(fmt.Sprintf("top%d", topN), func(t *testing.T) {
			d := New(DefaultOptions())

			part := d.Partition(ms, topN)
			assert.GreaterOrEqual(t, part.K, topN)
			require.Len(t, part.Assignments, len(ms))
			total := 0
			for _, n := range part.Sizes {
				total += n
			}
			assert.Equal(t, len(ms), total, "every point in exactly one cluster")
			for _, c := range part.Assignments {
				assert.True(t, c >= 0 && c < part.K)
			}

			spots, err := d.Detect(s.Snapshot(), domain.GasPM25, topN)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(spots), topN)
			for i := 1; i < len(spots); i++ {
				assert.GreaterOrEqual(t, spots[i-1].AvgValue, spots[i].AvgValue)
				assert.Equal(t, i+1, spots[i].Rank)
			}

			again, err := d.Detect(s.Snapshot(), domain.GasPM25, topN)
			require.NoError(t, err)
			assert.Equal(t, spots, again, "clustering is deterministic")
		})
	}
}

func TestClusters(t *testing.T) {
	d := New(DefaultOptions())
	assert.Equal(t, 15, d.Clusters(1, 100, 100))
	assert.Equal(t, 20, d.Clusters(20, 100, 100))
	assert.Equal(t, 3, d.Clusters(1, 3, 3))
	assert.Equal(t, 2, d.Clusters(5, 10, 2))
	assert.Equal(t, 1, d.Clusters(5, 10, 0))
}

func TestStandardize(t *testing.T) {
	out := standardize([]feature{{0, 5, 10}, {2, 5, 30}})
	assert.InDelta(t, -1, out[0][0], 1e-9)
	assert.InDelta(t, 1, out[1][0], 1e-9)
	assert.InDelta(t, 0, out[0][1], 1e-9, "zero-spread column is centered")
	assert.InDelta(t, 1, out[1][2], 1e-9)
}

func TestLabel(t *testing.T) {
	c := domain.Geo{Lat: 28.6, Lon: 77.2}
	assert.Equal(t,
		domain.PlaceName{Name: "Okhla", Source: domain.LabelReported},
		label([]string{"Okhla", "Anand Vihar", "Okhla"}, c))
	assert.Equal(t,
		domain.PlaceName{Name: "Delhi", Source: domain.LabelStatic},
		label([]string{"Unknown", ""}, c))
	// A reported name that matches the static label is still reported.
	assert.Equal(t,
		domain.PlaceName{Name: "Delhi", Source: domain.LabelReported},
		label([]string{"Delhi"}, c))
}
