package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// numFeatures is the intercept plus two daily harmonics.
const numFeatures = 5

var errSingular = errors.New("singular system")

// Model is the fitted state for one location and gas. It is a plain value
// so it can be cached, persisted and restored.
type Model struct {
	Location string               `json:"location"`
	Gas      domain.Gas           `json:"gas"`
	Baseline float64              `json:"baseline"`
	Profile  Profile              `json:"profile"`
	Coef     [numFeatures]float64 `json:"coef"`
	Samples  int                  `json:"samples"`
	FittedAt time.Time            `json:"fitted_at"`
	// UTCOffset shifts timestamps to the location's wall clock.
	UTCOffset time.Duration `json:"utc_offset"`
}

// Key identifies the model in caches and stores.
func (m Model) Key() string {
	return modelKey(m.Location, m.Gas)
}

// Predict returns the expected concentration at t, never negative.
func (m Model) Predict(t time.Time) float64 {
	local := wallClock(t, m.UTCOffset)
	x := hourFeatures(hourOfDay(local))
	v := m.Baseline * m.Profile.Multiplier(local.Hour())
	for i := range x {
		v += m.Coef[i] * x[i]
	}
	return math.Max(0, v)
}

// wallClock shifts t by offset and drops the zone, so Hour and Minute read
// the location's wall clock.
func wallClock(t time.Time, offset time.Duration) time.Time {
	return t.UTC().Add(offset)
}

// hourOfDay returns the fractional hour of t.
func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

// hourFeatures encodes the hour cyclically so 23:00 and 00:00 are neighbors.
func hourFeatures(h float64) [numFeatures]float64 {
	a := 2 * math.Pi * h / 24
	return [numFeatures]float64{1, math.Sin(a), math.Cos(a), math.Sin(2 * a), math.Cos(2 * a)}
}

type sample struct {
	at    time.Time
	value float64
}

// fit regresses the residual against the diurnal prior with ridge penalty
// lambda on every coefficient. The penalty shrinks sparse slices toward the
// baseline.
func fit(samples []sample, m Model, lambda float64) ([numFeatures]float64, error) {
	var a [numFeatures][numFeatures]float64
	var b [numFeatures]float64
	for _, s := range samples {
		local := wallClock(s.at, m.UTCOffset)
		x := hourFeatures(hourOfDay(local))
		r := s.value - m.Baseline*m.Profile.Multiplier(local.Hour())
		for i := range x {
			b[i] += x[i] * r
			for j := range x {
				a[i][j] += x[i] * x[j]
			}
		}
	}
	for i := range a {
		a[i][i] += lambda
	}
	return solve(a, b)
}

// solve runs Gaussian elimination with partial pivoting.
func solve(a [numFeatures][numFeatures]float64, b [numFeatures]float64) ([numFeatures]float64, error) {
	const n = numFeatures
	for col := range n {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [n]float64{}, errSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	var x [n]float64
	for r := n - 1; r >= 0; r-- {
		s := b[r]
		for c := r + 1; c < n; c++ {
			s -= a[r][c] * x[c]
		}
		x[r] = s / a[r][r]
	}
	return x, nil
}
