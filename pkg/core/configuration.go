// pkg/core/configuration.go
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNegativeDuration is returned when a configuration carries a negative playback duration.
var ErrNegativeDuration = errors.New("playback duration must not be negative")

// AnimationCurve names the easing curve the renderer applies on region changes.
type AnimationCurve string

const (
	CurveLinear    AnimationCurve = "linear"
	CurveEaseIn    AnimationCurve = "easeIn"
	CurveEaseOut   AnimationCurve = "easeOut"
	CurveEaseInOut AnimationCurve = "easeInOut"
)

// RegionChangeAnimation describes how the renderer moves the camera to a new point.
// A zero Duration means the camera jumps without animation.
type RegionChangeAnimation struct {
	Duration time.Duration  `json:"duration" yaml:"duration"`
	Curve    AnimationCurve `json:"curve,omitempty" yaml:"curve,omitempty"`
}

// CameraConfiguration is the per-point camera payload.
// Only PlaybackDuration is interpreted by the player; everything else is
// forwarded untouched to the renderer.
type CameraConfiguration struct {
	Name                  string                `json:"name" yaml:"name"`
	AnimationSpeed        time.Duration         `json:"animationSpeed" yaml:"animationSpeed"`
	RegionChangeAnimation RegionChangeAnimation `json:"regionChangeAnimation" yaml:"regionChangeAnimation"`
	HeadingStep           float64               `json:"headingStep" yaml:"headingStep"` // degrees per animation tick
	Altitude              float64               `json:"altitude" yaml:"altitude"`       // metres
	Pitch                 float64               `json:"pitch" yaml:"pitch"`             // degrees

	// How long the player stays on the point before advancing. Zero halts
	// playback at the point.
	PlaybackDuration time.Duration `json:"playbackDuration" yaml:"playbackDuration"`
}

// Validate rejects configurations the player cannot schedule.
func (c CameraConfiguration) Validate() error {
	if c.PlaybackDuration < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeDuration, c.PlaybackDuration)
	}
	return nil
}

// WithPlaybackDuration returns a copy of the configuration with a different playback duration.
func (c CameraConfiguration) WithPlaybackDuration(d time.Duration) CameraConfiguration {
	c.PlaybackDuration = d
	return c
}

// Built-in presets
var (
	DefaultConfiguration = CameraConfiguration{
		Name:           "default",
		AnimationSpeed: 4 * time.Second,
		RegionChangeAnimation: RegionChangeAnimation{
			Duration: 1500 * time.Millisecond,
			Curve:    CurveEaseInOut,
		},
		HeadingStep:      20,
		Altitude:         600,
		Pitch:            45,
		PlaybackDuration: 10 * time.Second,
	}

	SeasideConfiguration = CameraConfiguration{
		Name:             "seaside",
		AnimationSpeed:   4 * time.Second,
		HeadingStep:      2,
		Altitude:         1000,
		Pitch:            65,
		PlaybackDuration: 15 * time.Second,
	}

	LowflightConfiguration = CameraConfiguration{
		Name:             "lowflight",
		AnimationSpeed:   4 * time.Second,
		HeadingStep:      10,
		Altitude:         150,
		Pitch:            55,
		PlaybackDuration: 10 * time.Second,
	}

	GiddyConfiguration = CameraConfiguration{
		Name:             "giddy",
		AnimationSpeed:   2 * time.Second,
		HeadingStep:      60,
		Altitude:         400,
		Pitch:            75,
		PlaybackDuration: 5 * time.Second,
	}
)

var presets = map[string]CameraConfiguration{
	DefaultConfiguration.Name:   DefaultConfiguration,
	SeasideConfiguration.Name:   SeasideConfiguration,
	LowflightConfiguration.Name: LowflightConfiguration,
	GiddyConfiguration.Name:     GiddyConfiguration,
}

// ConfigurationByName looks up a preset, case-insensitively.
func ConfigurationByName(name string) (CameraConfiguration, bool) {
	cfg, ok := presets[strings.ToLower(name)]
	return cfg, ok
}
