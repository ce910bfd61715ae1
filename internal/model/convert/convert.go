// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/OCAP2/flyover/internal/geo"
	"github.com/OCAP2/flyover/internal/model"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// ItineraryPoint is the stored form of one point of a session's itinerary.
type ItineraryPoint struct {
	Coordinate    core.Coordinate          `json:"coordinate"`
	Configuration core.CameraConfiguration `json:"configuration"`
}

// CoreToSession converts a core session and its sequence to a GORM model.Session.
func CoreToSession(s core.Session, seq *core.PlaybackSequence) (model.Session, error) {
	points := seq.Points()
	itinerary := make([]ItineraryPoint, len(points))
	for i, p := range points {
		itinerary[i] = ItineraryPoint{Coordinate: p.Coordinate(), Configuration: p.Configuration()}
	}
	data, err := json.Marshal(itinerary)
	if err != nil {
		return model.Session{}, fmt.Errorf("marshal itinerary: %w", err)
	}

	var path geom.LineString
	if seq.Len() > 1 {
		path, err = geo.Path(seq)
		if err != nil {
			return model.Session{}, err
		}
	}

	return model.Session{
		UUID:       s.ID.String(),
		StartedAt:  s.StartedAt,
		EndedAt:    nullTime(s.EndedAt),
		PointCount: s.PointCount,
		StartIndex: s.StartIndex,
		IsPlaying:  s.IsPlaying,
		Itinerary:  datatypes.JSON(data),
		Path:       path,
	}, nil
}

// SessionToCore converts a GORM model.Session back to a core session.
func SessionToCore(m model.Session) (core.Session, error) {
	id, err := uuid.Parse(m.UUID)
	if err != nil {
		return core.Session{}, fmt.Errorf("session uuid: %w", err)
	}
	s := core.Session{
		ID:         id,
		StartedAt:  m.StartedAt,
		PointCount: m.PointCount,
		StartIndex: m.StartIndex,
		IsPlaying:  m.IsPlaying,
	}
	if m.EndedAt != nil {
		s.EndedAt = *m.EndedAt
	}
	return s, nil
}

// CoreToVisit converts a core visit to a GORM model.Visit.
// SessionID is left for the caller to stamp.
func CoreToVisit(v core.Visit) model.Visit {
	cfg, _ := json.Marshal(v.Configuration)
	return model.Visit{
		ArrivedAt:        v.ArrivedAt,
		Index:            v.Index,
		Latitude:         v.Coordinate.Latitude,
		Longitude:        v.Coordinate.Longitude,
		Altitude:         v.Coordinate.Altitude,
		Position:         geo.Point3857(v.Coordinate),
		Preset:           v.Configuration.Name,
		PlaybackDuration: v.Configuration.PlaybackDuration.Milliseconds(),
		Configuration:    datatypes.JSON(cfg),
	}
}

// VisitToCore converts a GORM model.Visit back to a core visit.
func VisitToCore(m model.Visit, sessionID uuid.UUID) core.Visit {
	var cfg core.CameraConfiguration
	if len(m.Configuration) > 0 {
		_ = json.Unmarshal(m.Configuration, &cfg)
	}
	if cfg.Name == "" {
		cfg.Name = m.Preset
	}
	cfg.PlaybackDuration = time.Duration(m.PlaybackDuration) * time.Millisecond

	return core.Visit{
		SessionID: sessionID,
		Index:     m.Index,
		Coordinate: core.Coordinate{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Altitude:  m.Altitude,
		},
		Configuration: cfg,
		ArrivedAt:     m.ArrivedAt,
	}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
