package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/flyover/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Coordinates arrive as WGS84 (EPSG:4326) latitude/longitude. The renderer and
// the spatial columns work in Web Mercator (EPSG:3857); geometry is stored as WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

const earthRadiusMeters = 6371008.8

var to3857 = wgs84.EPSG().Transform(4326, 3857)

// CoordinateFromString parses "lat,lon" or "lat,lon,alt" into a validated coordinate.
func CoordinateFromString(coords string) (core.Coordinate, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Coordinate{}, ErrInvalidCoordinates
	}

	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return core.Coordinate{}, ErrInvalidCoordinates
		}
		values[i] = v
	}

	c := core.Coordinate{Latitude: values[0], Longitude: values[1]}
	if len(values) == 3 {
		c.Altitude = values[2]
	}
	if err := c.Validate(); err != nil {
		return core.Coordinate{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return c, nil
}

// ToMercator projects a coordinate to EPSG:3857.
func ToMercator(c core.Coordinate) core.Mercator {
	x, y, _ := to3857(c.Longitude, c.Latitude, 0)
	return core.Mercator{X: x, Y: y}
}

// Point3857 builds a Web Mercator point geometry, with the altitude as Z.
func Point3857(c core.Coordinate) geom.Point {
	m := ToMercator(c)
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: m.X, Y: m.Y},
		Z:    c.Altitude,
		Type: geom.DimXYZ,
	})
}

// Path returns the itinerary as a WGS84 line string (x = longitude, y = latitude).
// A single-point sequence has no path.
func Path(seq *core.PlaybackSequence) (geom.LineString, error) {
	points := seq.Points()
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("path needs at least 2 points, got %d", len(points))
	}

	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		c := p.Coordinate()
		flat = append(flat, c.Longitude, c.Latitude)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)), nil
}

// Distance returns the great-circle distance between two coordinates in metres.
func Distance(a, b core.Coordinate) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// TourLength is the distance flown over one full cycle, including the leg
// from the last point back to the first.
func TourLength(seq *core.PlaybackSequence) float64 {
	points := seq.Points()
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := range points {
		next := points[seq.Next(i)]
		total += Distance(points[i].Coordinate(), next.Coordinate())
	}
	return total
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
