package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/flyover/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"startedAt"`
	EndedAt    *time.Time   `json:"endedAt,omitempty"`
	StartIndex int          `json:"startIndex"`
	IsPlaying  bool         `json:"isPlaying"`
	Points     []PointJSON  `json:"points"`
	Visits     []VisitJSON  `json:"visits"`
	Summary    VisitSummary `json:"summary"`
}

// PointJSON is one itinerary point
type PointJSON struct {
	Latitude         float64 `json:"lat"`
	Longitude        float64 `json:"lon"`
	Altitude         float64 `json:"alt,omitempty"`
	Preset           string  `json:"preset"`
	PlaybackDuration float64 `json:"playbackDuration"` // seconds
	CameraAltitude   float64 `json:"cameraAltitude"`
	Pitch            float64 `json:"pitch"`
}

// VisitJSON is one arrival as [index, unix millis]
type VisitJSON [2]int64

// VisitSummary counts visits per point
type VisitSummary struct {
	Total    int   `json:"total"`
	PerPoint []int `json:"perPoint"`
	Cycles   int   `json:"cycles"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON(record *SessionRecord) error {
	export := buildExport(record)

	timestamp := record.Session.StartedAt.Format("20060102_150405")
	short := record.Session.ID.String()[:8]

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("flyover_%s_%s.json.gz", timestamp, short)
	} else {
		filename = fmt.Sprintf("flyover_%s_%s.json", timestamp, short)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func buildExport(record *SessionRecord) SessionExport {
	s := record.Session
	export := SessionExport{
		ID:         s.ID.String(),
		StartedAt:  s.StartedAt,
		StartIndex: s.StartIndex,
		IsPlaying:  s.IsPlaying,
		Points:     make([]PointJSON, len(record.Points)),
		Visits:     make([]VisitJSON, len(record.Visits)),
	}
	if !s.EndedAt.IsZero() {
		ended := s.EndedAt
		export.EndedAt = &ended
	}

	for i, p := range record.Points {
		c, cfg := p.Coordinate(), p.Configuration()
		export.Points[i] = PointJSON{
			Latitude:         c.Latitude,
			Longitude:        c.Longitude,
			Altitude:         c.Altitude,
			Preset:           cfg.Name,
			PlaybackDuration: cfg.PlaybackDuration.Seconds(),
			CameraAltitude:   cfg.Altitude,
			Pitch:            cfg.Pitch,
		}
	}

	for i, v := range record.Visits {
		export.Visits[i] = VisitJSON{int64(v.Index), v.ArrivedAt.UnixMilli()}
	}
	export.Summary = summarize(record.Visits, len(record.Points), s.StartIndex)

	return export
}

// summarize counts visits per point. A cycle completes each time the player
// arrives back at the start index after the first visit.
func summarize(visits []core.Visit, points, startIndex int) VisitSummary {
	summary := VisitSummary{Total: len(visits), PerPoint: make([]int, points)}
	for i, v := range visits {
		if v.Index >= 0 && v.Index < points {
			summary.PerPoint[v.Index]++
		}
		if i > 0 && v.Index == startIndex {
			summary.Cycles++
		}
	}
	return summary
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(data); err != nil {
		_ = gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip: %w", err)
	}
	return nil
}
