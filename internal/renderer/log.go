package renderer

import (
	"context"
	"log/slog"

	"github.com/OCAP2/flyover/pkg/core"
)

// Log is a headless renderer that writes every command to a logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log renderer. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) FlyTo(ctx context.Context, cmd core.FlyToCommand) error {
	l.logger.InfoContext(ctx, "fly to",
		"index", cmd.Index,
		"lat", cmd.Coordinate.Latitude,
		"lon", cmd.Coordinate.Longitude,
		"x", cmd.Mercator.X,
		"y", cmd.Mercator.Y,
		"preset", cmd.Configuration.Name,
		"altitude", cmd.Configuration.Altitude,
		"pitch", cmd.Configuration.Pitch,
		"duration", cmd.Configuration.PlaybackDuration)
	return nil
}

func (l *Log) StopFlyover(ctx context.Context) error {
	l.logger.InfoContext(ctx, "stop flyover")
	return nil
}

func (l *Log) StartSession(ctx context.Context, s *core.Session, seq *core.PlaybackSequence) error {
	l.logger.InfoContext(ctx, "session started", "session", s.ID, "points", seq.Len(), "startIndex", s.StartIndex)
	return nil
}

func (l *Log) EndSession(ctx context.Context, s *core.Session) error {
	l.logger.InfoContext(ctx, "session ended", "session", s.ID)
	return nil
}

func (l *Log) IndexChanged(ctx context.Context, index int) error {
	l.logger.DebugContext(ctx, "index changed", "index", index)
	return nil
}

func (l *Log) Close() error {
	return nil
}
