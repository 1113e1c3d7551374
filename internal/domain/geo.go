package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Geo) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ValidCoordinate reports whether g lies within WGS-84 bounds.
func ValidCoordinate(g Geo) bool {
	return !math.IsNaN(g.Lat) && !math.IsNaN(g.Lon) &&
		g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// Cardinal names the compass quadrant of a bearing in degrees.
func Cardinal(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	switch {
	case d >= 45 && d < 135:
		return "East"
	case d >= 135 && d < 225:
		return "South"
	case d >= 225 && d < 315:
		return "West"
	default:
		return "North"
	}
}

// AreaOfInterest is the rectangular WGS-84 region the system covers.
// Coordinates outside it are valid but quarantined.
type AreaOfInterest struct {
	bounds *geom.Bounds
}

// IndiaBounds is the default area of interest.
var IndiaBounds = NewAreaOfInterest(6.5, 68.0, 37.5, 97.5)

// NewAreaOfInterest builds an area from its south-west and north-east corners.
func NewAreaOfInterest(minLat, minLon, maxLat, maxLon float64) AreaOfInterest {
	return AreaOfInterest{bounds: geom.NewBounds(geom.XY).Set(minLon, minLat, maxLon, maxLat)}
}

// ParseAreaOfInterest parses "minLat,minLon,maxLat,maxLon".
func ParseAreaOfInterest(s string) (AreaOfInterest, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return AreaOfInterest{}, fmt.Errorf("area of interest %q: want minLat,minLon,maxLat,maxLon", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return AreaOfInterest{}, fmt.Errorf("area of interest %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return AreaOfInterest{}, fmt.Errorf("area of interest %q: min corner must be south-west of max corner", s)
	}
	if !ValidCoordinate(Geo{v[0], v[1]}) || !ValidCoordinate(Geo{v[2], v[3]}) {
		return AreaOfInterest{}, fmt.Errorf("area of interest %q: corners out of range", s)
	}
	return NewAreaOfInterest(v[0], v[1], v[2], v[3]), nil
}

// IsZero reports whether the area is unset. An unset area contains everything.
func (a AreaOfInterest) IsZero() bool {
	return a.bounds == nil
}

// Contains reports whether g lies inside the area, edges included.
func (a AreaOfInterest) Contains(g Geo) bool {
	if a.bounds == nil {
		return true
	}
	return a.bounds.OverlapsPoint(geom.XY, geom.Coord{g.Lon, g.Lat})
}

// Min returns the south-west corner.
func (a AreaOfInterest) Min() Geo {
	return Geo{Lat: a.bounds.Min(1), Lon: a.bounds.Min(0)}
}

// Max returns the north-east corner.
func (a AreaOfInterest) Max() Geo {
	return Geo{Lat: a.bounds.Max(1), Lon: a.bounds.Max(0)}
}

// String returns the area as WKT.
func (a AreaOfInterest) String() string {
	if a.bounds == nil {
		return "EMPTY"
	}
	s, err := wkt.Marshal(a.bounds.Polygon())
	if err != nil {
		return fmt.Sprintf("BOUNDS(%v)", a.bounds)
	}
	return s
}

// GridCell is one satellite sampling cell.
type GridCell struct {
	Center Geo `json:"center"`
	Min    Geo `json:"min"`
	Max    Geo `json:"max"`
}

// Grid splits the area into floor(sqrt(n)) x floor(sqrt(n)) equal cells,
// column by column from the south-west corner.
func (a AreaOfInterest) Grid(n int) []GridCell {
	size := int(math.Sqrt(float64(n)))
	if size < 1 || a.bounds == nil {
		return nil
	}
	lo, hi := a.Min(), a.Max()
	dLon := (hi.Lon - lo.Lon) / float64(size)
	dLat := (hi.Lat - lo.Lat) / float64(size)

	cells := make([]GridCell, 0, size*size)
	for i := range size {
		for j := range size {
			cMin := Geo{Lat: lo.Lat + float64(j)*dLat, Lon: lo.Lon + float64(i)*dLon}
			cMax := Geo{Lat: cMin.Lat + dLat, Lon: cMin.Lon + dLon}
			cells = append(cells, GridCell{
				Center: Geo{Lat: (cMin.Lat + cMax.Lat) / 2, Lon: (cMin.Lon + cMax.Lon) / 2},
				Min:    cMin,
				Max:    cMax,
			})
		}
	}
	return cells
}
