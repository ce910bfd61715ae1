// Package renderer defines how flyover camera commands reach the map.
package renderer

import (
	"context"

	"github.com/OCAP2/flyover/internal/geo"
	"github.com/OCAP2/flyover/pkg/core"
)

// Renderer moves the map camera.
type Renderer interface {
	// FlyTo starts the flyover animation towards a point.
	FlyTo(ctx context.Context, cmd core.FlyToCommand) error
	// StopFlyover halts any running camera animation.
	StopFlyover(ctx context.Context) error
	Close() error
}

// SessionRenderer is implemented by renderers that track sessions.
type SessionRenderer interface {
	StartSession(ctx context.Context, s *core.Session, seq *core.PlaybackSequence) error
	EndSession(ctx context.Context, s *core.Session) error
}

// IndexReporter is implemented by renderers that display the player position.
type IndexReporter interface {
	IndexChanged(ctx context.Context, index int) error
}

// NewFlyTo builds the command for point p at index i.
func NewFlyTo(i int, p core.Point) core.FlyToCommand {
	return core.FlyToCommand{
		Index:         i,
		Coordinate:    p.Coordinate(),
		Mercator:      geo.ToMercator(p.Coordinate()),
		Configuration: p.Configuration(),
	}
}
