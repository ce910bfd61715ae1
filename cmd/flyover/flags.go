package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/internal/itinerary"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/spf13/viper"
)

type options struct {
	configDir    string
	sequenceFile string
	path         string
	preset       string
	startIndex   int
	paused       bool

	set map[string]bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.StringVar(&o.configDir, "config", ".", "directory containing "+config.ConfigFileName)
	fs.StringVar(&o.sequenceFile, "sequence", "", "itinerary file (.json, .yaml)")
	fs.StringVar(&o.path, "path", "", `inline itinerary of lat,lon[,alt] points separated by ";", e.g. "48.85,2.29;48.86,2.33"`)
	fs.StringVar(&o.preset, "preset", "", "camera preset for -path points (default, seaside, lowflight, giddy)")
	fs.IntVar(&o.startIndex, "start", 0, "index of the first point")
	fs.BoolVar(&o.paused, "paused", false, "start with playback disabled")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.sequenceFile != "" && o.path != "" {
		return o, fmt.Errorf("-sequence and -path are mutually exclusive")
	}

	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overrides configuration values with the flags given explicitly.
func (o options) apply() {
	if o.set["sequence"] {
		viper.Set("player.sequenceFile", o.sequenceFile)
	}
	if o.set["preset"] {
		viper.Set("player.preset", o.preset)
	}
	if o.set["start"] {
		viper.Set("player.startIndex", o.startIndex)
	}
	if o.set["paused"] {
		viper.Set("player.isPlaying", !o.paused)
	}
}

func loadSequence(cfg config.PlayerConfig, o options) (*core.PlaybackSequence, error) {
	if strings.TrimSpace(o.path) == "" {
		seq, err := itinerary.LoadFile(cfg.SequenceFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load itinerary %s: %w", cfg.SequenceFile, err)
		}
		return seq, nil
	}

	camera, ok := core.ConfigurationByName(cfg.Preset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", itinerary.ErrUnknownPreset, cfg.Preset)
	}
	seq, err := itinerary.FromPath(o.path, camera)
	if err != nil {
		return nil, fmt.Errorf("failed to parse -path: %w", err)
	}
	return seq, nil
}
