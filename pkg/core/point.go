// pkg/core/point.go
package core

import (
	"fmt"
	"time"
)

// Point is one stop of an itinerary. It is immutable once constructed.
type Point struct {
	coordinate    Coordinate
	configuration CameraConfiguration
}

// NewPoint validates and builds a point.
func NewPoint(coordinate Coordinate, configuration CameraConfiguration) (Point, error) {
	if err := coordinate.Validate(); err != nil {
		return Point{}, fmt.Errorf("point coordinate: %w", err)
	}
	if err := configuration.Validate(); err != nil {
		return Point{}, fmt.Errorf("point configuration: %w", err)
	}
	return Point{coordinate: coordinate, configuration: configuration}, nil
}

// MustPoint is like NewPoint but panics on invalid input. Intended for fixtures.
func MustPoint(coordinate Coordinate, configuration CameraConfiguration) Point {
	p, err := NewPoint(coordinate, configuration)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Point) Coordinate() Coordinate { return p.coordinate }

func (p Point) Configuration() CameraConfiguration { return p.configuration }

// PlaybackDuration is a shortcut for Configuration().PlaybackDuration.
func (p Point) PlaybackDuration() time.Duration { return p.configuration.PlaybackDuration }
