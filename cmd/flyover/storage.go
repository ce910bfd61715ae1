package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/internal/renderer"
	wsrenderer "github.com/OCAP2/flyover/internal/renderer/websocket"
	"github.com/OCAP2/flyover/internal/storage"
	"github.com/OCAP2/flyover/internal/storage/memory"
	pgstorage "github.com/OCAP2/flyover/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/flyover/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

func createStorageBackend(storageCfg config.StorageConfig, sessionStart time.Time, logger *slog.Logger, zlog zerolog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Dependencies{
			Config: config.GetDBConfig(),
			DBLog:  zlog.With().Str("component", "database").Logger(),
			Logger: logger.With("component", "storage"),
		}), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.Path
		if ext := filepath.Ext(dumpPath); ext != "" {
			dumpPath = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(dumpPath, ext), sessionStart.Format("20060102_150405"), ext)
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, logger.With("component", "storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected", "dumpPath", dumpPath)
		return backend, nil

	case "memory", "":
		logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

func createRenderer(ctx context.Context, cfg config.RendererConfig, logger *slog.Logger) (renderer.Renderer, error) {
	switch cfg.Type {
	case "websocket":
		wsURL := httpToWS(cfg.URL) + "/flyover"
		r := wsrenderer.New(wsrenderer.Config{URL: wsURL, Secret: cfg.Secret}, logger.With("component", "renderer"))
		if err := r.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect renderer at %s: %w", wsURL, err)
		}
		logger.Info("WebSocket renderer connected", "url", wsURL)
		return r, nil

	case "log", "":
		return renderer.NewLog(logger.With("component", "renderer")), nil

	default:
		return nil, fmt.Errorf("unknown renderer type %q", cfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
