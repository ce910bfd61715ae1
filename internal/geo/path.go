package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OCAP2/flyover/pkg/core"
)

// ErrEmptyPath is returned when a path holds no coordinates.
var ErrEmptyPath = errors.New("path must have at least 1 point")

// ParsePath parses an inline path of "lat,lon[,alt]" items separated by ';',
// e.g. "48.85,2.29;48.86,2.33,120". A JSON array of [lat,lon] or
// [lat,lon,alt] tuples is accepted as well.
func ParsePath(input string) ([]core.Coordinate, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "[") {
		return parseJSONPath(input)
	}

	var coords []core.Coordinate
	for i, item := range strings.Split(input, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		c, err := CoordinateFromString(item)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d %q: %w", i, item, err)
		}
		coords = append(coords, c)
	}

	if len(coords) == 0 {
		return nil, ErrEmptyPath
	}
	return coords, nil
}

func parseJSONPath(input string) ([]core.Coordinate, error) {
	var tuples [][]float64
	if err := json.Unmarshal([]byte(input), &tuples); err != nil {
		return nil, fmt.Errorf("failed to parse path JSON: %w", err)
	}

	if len(tuples) == 0 {
		return nil, ErrEmptyPath
	}

	coords := make([]core.Coordinate, len(tuples))
	for i, tuple := range tuples {
		if len(tuple) < 2 || len(tuple) > 3 {
			return nil, fmt.Errorf("coordinate %d has %d values, want 2 or 3", i, len(tuple))
		}
		c := core.Coordinate{Latitude: tuple[0], Longitude: tuple[1]}
		if len(tuple) == 3 {
			c.Altitude = tuple[2]
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		coords[i] = c
	}

	return coords, nil
}
