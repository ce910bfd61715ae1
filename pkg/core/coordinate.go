// pkg/core/coordinate.go
package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned when a coordinate is not a finite
// latitude/longitude pair within range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 geographic position.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	// Altitude in metres, only meaningful to the renderer
	Altitude float64 `json:"altitude,omitempty" yaml:"altitude,omitempty"`
}

// NewCoordinate builds a validated coordinate.
func NewCoordinate(latitude, longitude float64) (Coordinate, error) {
	c := Coordinate{Latitude: latitude, Longitude: longitude}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks that the coordinate is finite and in range.
func (c Coordinate) Validate() error {
	for _, v := range []float64{c.Latitude, c.Longitude, c.Altitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %s", ErrInvalidCoordinate, c)
		}
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%f, %f)", c.Latitude, c.Longitude)
}
