// pkg/core/sequence.go
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSequence is returned when a playback sequence has no points.
	ErrInvalidSequence = errors.New("playback sequence must contain at least one point")

	// ErrIndexOutOfRange is returned when an index falls outside [0, len(points)).
	ErrIndexOutOfRange = errors.New("index out of range")
)

// PlaybackSequence is the immutable, ordered itinerary of points.
// It is safe to share between goroutines.
type PlaybackSequence struct {
	points []Point
}

// NewPlaybackSequence copies points into a new sequence. The order of points
// is the play order.
func NewPlaybackSequence(points ...Point) (*PlaybackSequence, error) {
	if len(points) == 0 {
		return nil, ErrInvalidSequence
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return &PlaybackSequence{points: cp}, nil
}

// SinglePoint builds a one-stop sequence.
func SinglePoint(coordinate Coordinate, configuration CameraConfiguration) (*PlaybackSequence, error) {
	p, err := NewPoint(coordinate, configuration)
	if err != nil {
		return nil, err
	}
	return NewPlaybackSequence(p)
}

// Points returns a copy of the sequence's points.
func (s *PlaybackSequence) Points() []Point {
	cp := make([]Point, len(s.points))
	copy(cp, s.points)
	return cp
}

// Len returns the number of points.
func (s *PlaybackSequence) Len() int {
	return len(s.points)
}

// At returns the point at index i.
func (s *PlaybackSequence) At(i int) (Point, error) {
	if err := s.CheckIndex(i); err != nil {
		return Point{}, err
	}
	return s.points[i], nil
}

// CheckIndex reports whether i addresses a point of the sequence.
func (s *PlaybackSequence) CheckIndex(i int) error {
	if i < 0 || i >= len(s.points) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(s.points))
	}
	return nil
}

// Next returns the index that follows i, wrapping at the end of the sequence.
func (s *PlaybackSequence) Next(i int) int {
	return (i + 1) % len(s.points)
}
