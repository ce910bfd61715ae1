// Package itinerary loads flyover sequences from JSON or YAML files.
//
// A file names a default camera preset and lists the points to visit:
//
//	preset: seaside
//	playbackDuration: 12s
//	points:
//	  - name: Golden Gate
//	    latitude: 37.8199
//	    longitude: -122.4783
//	  - latitude: 40.6892
//	    longitude: -74.0445
//	    preset: giddy
//	    playbackDuration: 0s   # halt here
//
// File-level altitude, pitch and playbackDuration apply to every point, also
// to points naming their own preset; a point's own fields win over both.
package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/flyover/internal/geo"
	"github.com/OCAP2/flyover/pkg/core"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported itinerary format")

// ErrUnknownPreset is returned when a preset name does not match a built-in configuration.
var ErrUnknownPreset = errors.New("unknown camera preset")

// Format of an itinerary document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// File is the on-disk layout of an itinerary.
type File struct {
	Name             string      `json:"name,omitempty" yaml:"name,omitempty"`
	Preset           string      `json:"preset,omitempty" yaml:"preset,omitempty"`
	PlaybackDuration string      `json:"playbackDuration,omitempty" yaml:"playbackDuration,omitempty"`
	Altitude         *float64    `json:"altitude,omitempty" yaml:"altitude,omitempty"`
	Pitch            *float64    `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Points           []PointSpec `json:"points" yaml:"points"`
}

// PointSpec is one entry of File.Points. Unset fields inherit from the file.
type PointSpec struct {
	Name             string   `json:"name,omitempty" yaml:"name,omitempty"`
	Latitude         float64  `json:"latitude" yaml:"latitude"`
	Longitude        float64  `json:"longitude" yaml:"longitude"`
	Elevation        float64  `json:"elevation,omitempty" yaml:"elevation,omitempty"`
	Preset           string   `json:"preset,omitempty" yaml:"preset,omitempty"`
	PlaybackDuration string   `json:"playbackDuration,omitempty" yaml:"playbackDuration,omitempty"`
	Altitude         *float64 `json:"altitude,omitempty" yaml:"altitude,omitempty"`
	Pitch            *float64 `json:"pitch,omitempty" yaml:"pitch,omitempty"`
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile reads and builds the sequence stored at path.
func LoadFile(path string) (*core.PlaybackSequence, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open itinerary: %w", err)
	}
	defer f.Close()

	seq, err := Load(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// Load decodes an itinerary document and builds its sequence.
func Load(r io.Reader, format Format) (*core.PlaybackSequence, error) {
	var file File
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return file.Sequence()
}

// Sequence resolves presets and overrides into a playback sequence.
//
// A point's configuration is built in layers: its preset (or the file's),
// then the file-level overrides, then the point's own overrides. A preset
// brings its own playback duration unless the file or the point sets one.
func (f File) Sequence() (*core.PlaybackSequence, error) {
	fileCfg, err := preset(core.DefaultConfiguration, f.Preset)
	if err != nil {
		return nil, err
	}
	fileOverrides, err := newOverrides(f.PlaybackDuration, f.Altitude, f.Pitch)
	if err != nil {
		return nil, err
	}

	points := make([]core.Point, 0, len(f.Points))
	for i, entry := range f.Points {
		cfg, err := preset(fileCfg, entry.Preset)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		own, err := newOverrides(entry.PlaybackDuration, entry.Altitude, entry.Pitch)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		cfg = own.apply(fileOverrides.apply(cfg))
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}

		coord := core.Coordinate{Latitude: entry.Latitude, Longitude: entry.Longitude, Altitude: entry.Elevation}
		p, err := core.NewPoint(coord, cfg)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		points = append(points, p)
	}

	return core.NewPlaybackSequence(points...)
}

// preset returns the named configuration, or base when name is empty.
func preset(base core.CameraConfiguration, name string) (core.CameraConfiguration, error) {
	if name == "" {
		return base, nil
	}
	cfg, ok := core.ConfigurationByName(name)
	if !ok {
		return core.CameraConfiguration{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return cfg, nil
}

// overrides are the optional fields a file or point may set on top of a preset.
type overrides struct {
	duration *time.Duration
	altitude *float64
	pitch    *float64
}

func newOverrides(duration string, altitude, pitch *float64) (overrides, error) {
	o := overrides{altitude: altitude, pitch: pitch}
	if duration != "" {
		d, err := time.ParseDuration(duration)
		if err != nil {
			return overrides{}, fmt.Errorf("playback duration: %w", err)
		}
		o.duration = &d
	}
	return o, nil
}

func (o overrides) apply(cfg core.CameraConfiguration) core.CameraConfiguration {
	if o.duration != nil {
		cfg.PlaybackDuration = *o.duration
	}
	if o.altitude != nil {
		cfg.Altitude = *o.altitude
	}
	if o.pitch != nil {
		cfg.Pitch = *o.pitch
	}
	return cfg
}

// FromPath builds a sequence from an inline path such as
// "37.8,-122.4;40.7,-74.0", every point sharing cfg.
func FromPath(path string, cfg core.CameraConfiguration) (*core.PlaybackSequence, error) {
	coords, err := geo.ParsePath(path)
	if err != nil {
		return nil, err
	}

	points := make([]core.Point, len(coords))
	for i, c := range coords {
		p, err := core.NewPoint(c, cfg)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		points[i] = p
	}
	return core.NewPlaybackSequence(points...)
}
