package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/internal/itinerary"
	"github.com/OCAP2/flyover/internal/renderer"
	"github.com/OCAP2/flyover/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHttpToWS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:5000", "ws://localhost:5000"},
		{"https://example.com/", "wss://example.com"},
		{"ws://already", "ws://already"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpToWS(tt.in), tt.in)
	}
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-config", "/etc/flyover", "-start", "2", "-paused"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/flyover", o.configDir)
	assert.Equal(t, 2, o.startIndex)
	assert.True(t, o.paused)
	assert.True(t, o.set["start"])
	assert.False(t, o.set["sequence"])

	_, err = parseFlags([]string{"-sequence", "a.yaml", "-path", "[[1,2]]"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-nope"})
	assert.Error(t, err)
}

func TestOptionsApply(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("player.isPlaying", true)
	viper.Set("player.startIndex", 0)
	viper.Set("player.sequenceFile", "from-config.json")

	o, err := parseFlags([]string{"-paused", "-start", "3", "-preset", "giddy"})
	require.NoError(t, err)
	o.apply()

	pcfg := config.GetPlayerConfig()
	assert.False(t, pcfg.IsPlaying)
	assert.Equal(t, 3, pcfg.StartIndex)
	assert.Equal(t, "giddy", pcfg.Preset)
	assert.Equal(t, "from-config.json", pcfg.SequenceFile, "unset flags keep config values")
}

func TestLoadSequence_InlinePath(t *testing.T) {
	o, err := parseFlags([]string{"-path", "48.8584,2.2945;48.8606,2.3376,120"})
	require.NoError(t, err)

	seq, err := loadSequence(config.PlayerConfig{Preset: "lowflight"}, o)
	require.NoError(t, err)
	require.Equal(t, 2, seq.Len())
	p, _ := seq.At(1)
	assert.Equal(t, "lowflight", p.Configuration().Name)
	assert.Equal(t, 120.0, p.Coordinate().Altitude)

	_, err = loadSequence(config.PlayerConfig{Preset: "nope"}, o)
	assert.ErrorIs(t, err, itinerary.ErrUnknownPreset)
}

func TestLoadSequence_MissingFile(t *testing.T) {
	_, err := loadSequence(config.PlayerConfig{SequenceFile: "/nonexistent/tour.yaml"}, options{})
	assert.Error(t, err)
}

func TestCreateStorageBackend(t *testing.T) {
	logger := slog.Default()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b, err := createStorageBackend(config.StorageConfig{
		Type:   "memory",
		Memory: config.MemoryConfig{OutputDir: t.TempDir()},
	}, start, logger, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	_, err = createStorageBackend(config.StorageConfig{Type: "cassandra"}, start, logger, zerolog.Nop())
	assert.Error(t, err)
}

func TestCreateRenderer(t *testing.T) {
	r, err := createRenderer(context.Background(), config.RendererConfig{Type: "log"}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &renderer.Log{}, r)

	_, err = createRenderer(context.Background(), config.RendererConfig{Type: "vr-headset"}, slog.Default())
	assert.Error(t, err)
}
