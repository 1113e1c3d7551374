package store

import (
	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// Snapshot is an immutable view of the store. Queries take one snapshot and
// never observe a later or half-applied ingestion.
type Snapshot struct {
	version      uint64
	precision    int
	measurements []domain.Measurement
	valid        map[domain.Gas][]int
}

func newSnapshot(version uint64, precision int, ms []domain.Measurement) *Snapshot {
	s := &Snapshot{
		version:      version,
		precision:    precision,
		measurements: ms,
		valid:        make(map[domain.Gas][]int),
	}
	for i, m := range ms {
		if m.Valid() {
			s.valid[m.Gas] = append(s.valid[m.Gas], i)
		}
	}
	return s
}

// Version increases with every ingestion or restore.
func (s *Snapshot) Version() uint64 { return s.version }

// Precision is the decimal precision of deduplication keys.
func (s *Snapshot) Precision() int { return s.precision }

// Len returns the number of retained measurements, quarantined included.
func (s *Snapshot) Len() int { return len(s.measurements) }

// All returns a copy of every retained measurement in sequence order.
func (s *Snapshot) All() []domain.Measurement {
	out := make([]domain.Measurement, len(s.measurements))
	copy(out, s.measurements)
	return out
}

// Quarantined returns the measurements retained for audit only.
func (s *Snapshot) Quarantined() []domain.Measurement {
	var out []domain.Measurement
	for _, m := range s.measurements {
		if m.Status == domain.StatusQuarantined {
			out = append(out, m)
		}
	}
	return out
}

// Valid returns a copy of the accepted measurements for gas in sequence order.
func (s *Snapshot) Valid(gas domain.Gas) []domain.Measurement {
	idx := s.valid[gas]
	out := make([]domain.Measurement, len(idx))
	for i, j := range idx {
		out[i] = s.measurements[j]
	}
	return out
}

// CountValid returns the number of accepted measurements for gas.
func (s *Snapshot) CountValid(gas domain.Gas) int {
	return len(s.valid[gas])
}

// Point is the fused value of every accepted measurement sharing one
// deduplication key. Fusing before interpolation keeps a station reported by
// several sources, or ingested twice, from counting more than once.
type Point struct {
	Key          domain.Key `json:"key"`
	Geo          domain.Geo `json:"geo"`
	Value        float64    `json:"value"`
	Unit         string     `json:"unit"`
	LocationName string     `json:"location_name,omitempty"`
	Sources      int        `json:"sources"`
	Members      int        `json:"members"`
}

// Fused groups the accepted measurements for gas by key. Within a source the
// latest reading wins (readings tied on timestamp are averaged); the source
// values are then averaged. Points are ordered by first appearance.
func (s *Snapshot) Fused(gas domain.Gas) []Point {
	type sourceLatest struct {
		latest int // index into measurements
		sum    float64
		n      int
	}
	type group struct {
		key     domain.Key
		first   int
		latSum  float64
		lonSum  float64
		members int
		order   []domain.Source
		bySrc   map[domain.Source]*sourceLatest
	}

	groups := make(map[domain.Key]*group)
	var order []*group
	for _, j := range s.valid[gas] {
		m := s.measurements[j]
		k := m.Key(s.precision)
		g, ok := groups[k]
		if !ok {
			g = &group{key: k, first: j, bySrc: make(map[domain.Source]*sourceLatest)}
			groups[k] = g
			order = append(order, g)
		}
		g.latSum += m.Geo.Lat
		g.lonSum += m.Geo.Lon
		g.members++

		sl, ok := g.bySrc[m.Source]
		switch {
		case !ok:
			g.bySrc[m.Source] = &sourceLatest{latest: j, sum: m.Value, n: 1}
			g.order = append(g.order, m.Source)
		case m.Timestamp.After(s.measurements[sl.latest].Timestamp):
			*sl = sourceLatest{latest: j, sum: m.Value, n: 1}
		case m.Timestamp.Equal(s.measurements[sl.latest].Timestamp):
			sl.sum += m.Value
			sl.n++
		}
	}

	points := make([]Point, 0, len(order))
	for _, g := range order {
		var total float64
		for _, src := range g.order {
			sl := g.bySrc[src]
			total += sl.sum / float64(sl.n)
		}
		first := s.measurements[g.first]
		points = append(points, Point{
			Key:          g.key,
			Geo:          domain.Geo{Lat: g.latSum / float64(g.members), Lon: g.lonSum / float64(g.members)},
			Value:        total / float64(len(g.order)),
			Unit:         g.key.Gas.Unit(),
			LocationName: first.LocationName,
			Sources:      len(g.order),
			Members:      g.members,
		})
	}
	return points
}
