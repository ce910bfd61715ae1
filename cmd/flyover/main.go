package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/OCAP2/flyover/internal/api"
	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/internal/control"
	"github.com/OCAP2/flyover/internal/director"
	"github.com/OCAP2/flyover/internal/dispatcher"
	"github.com/OCAP2/flyover/internal/geo"
	"github.com/OCAP2/flyover/internal/influx"
	"github.com/OCAP2/flyover/internal/logging"
	"github.com/OCAP2/flyover/internal/monitor"
	intOtel "github.com/OCAP2/flyover/internal/otel"
	"github.com/OCAP2/flyover/internal/player"
	"github.com/OCAP2/flyover/internal/storage"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const AppName = "flyover"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "flyover:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (using environment variables)")
	}
	if err := config.Load(opts.configDir); err != nil {
		fmt.Fprintln(os.Stderr, "Using default configuration:", err)
	}
	opts.apply()

	sessionStart := time.Now()
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg := config.GetOTelConfig()
	otelProvider, err := intOtel.New(ctx, intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      logFile,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OTel: %w", err)
	}

	level := viper.GetString("logLevel")
	var sinks []io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := gelf.NewWriter(gl.Address)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Graylog disabled:", err)
		} else {
			defer w.Close()
			sinks = append(sinks, w)
		}
	}

	// the director is created after logging; its attributes join once it exists
	var dir atomic.Pointer[director.Director]
	slogManager := logging.NewSlogManager()
	slogManager.SetContext(func() []slog.Attr {
		if d := dir.Load(); d != nil {
			return d.LogAttrs()
		}
		return nil
	})
	slogManager.Setup(logFile, level, otelProvider.LoggerProvider(), sinks...)
	logger := slogManager.Logger()
	zlog := logging.NewZerolog(logFile, level).With().Str("app", AppName).Logger()

	logger.Info("Starting flyover", "version", Version, "buildDate", BuildDate, "logFile", logPath)

	seq, err := loadSequence(config.GetPlayerConfig(), opts)
	if err != nil {
		return err
	}
	logger.Info("Itinerary loaded", "points", seq.Len(), "tourLengthMeters", int64(geo.TourLength(seq)))

	backend, err := createStorageBackend(config.GetStorageConfig(), sessionStart, logger, zlog)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	rend, err := createRenderer(ctx, config.GetRendererConfig(), logger)
	if err != nil {
		_ = backend.Close()
		return err
	}

	series := connectInflux(ctx, zlog)

	pcfg := config.GetPlayerConfig()
	p, err := player.New(seq, pcfg.IsPlaying,
		player.WithStartIndex(pcfg.StartIndex),
		player.WithLogger(logger.With("component", "player")),
	)
	if err != nil {
		_ = rend.Close()
		_ = backend.Close()
		return fmt.Errorf("failed to create player: %w", err)
	}

	deps := director.Dependencies{
		Player:   p,
		Renderer: rend,
		Storage:  backend,
		Logger:   logger.With("component", "director"),
		OnIndexChanged: func(i int) {
			logger.Debug("Player index changed", "index", i)
		},
	}
	if series != nil {
		deps.Series = series
	}
	d, err := director.New(deps)
	if err != nil {
		return err
	}
	dir.Store(d)

	disp, err := dispatcher.New(logging.NewZerologAdapter(zlog))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	ctlDeps := control.Dependencies{Controller: d}
	if q, ok := backend.(storage.Querier); ok {
		ctlDeps.Visits = q
	}
	control.NewManager(ctlDeps).RegisterHandlers(disp)
	logger.Debug("Control commands registered", "commands", disp.Commands())

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("failed to start director: %w", err)
	}

	var mon *monitor.Service
	if mcfg := config.GetMonitorConfig(); mcfg.Enabled {
		mdeps := monitor.Dependencies{
			Player:     p,
			Logger:     logger.With("component", "monitor"),
			StatusFile: mcfg.StatusFile,
			Interval:   mcfg.Interval,
		}
		if q, ok := backend.(monitor.WriteQueue); ok {
			mdeps.Queue = q
		}
		mon = monitor.NewService(mdeps)
		if err := mon.Start(); err != nil {
			logger.Warn("Status monitor not started", "error", err)
		}
	}

	var server *api.Server
	if acfg := config.GetAPIConfig(); acfg.Enabled {
		server = api.New(acfg, disp, logger.With("component", "api"))
		server.Start()
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if server != nil {
		errs = append(errs, server.Shutdown(shutdownCtx))
	}
	if mon != nil {
		mon.Stop()
	}
	errs = append(errs, d.Close(shutdownCtx))
	disp.Close()
	errs = append(errs, rend.Close())
	errs = append(errs, backend.Close())
	if series != nil {
		errs = append(errs, series.Close())
	}

	uploadExport(shutdownCtx, backend, d, logger)

	if err := slogManager.Flush(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, "log flush failed:", err)
	}
	errs = append(errs, otelProvider.Shutdown(shutdownCtx))

	if err := errors.Join(errs...); err != nil {
		logger.Error("Shutdown finished with errors", "error", err)
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// connectInflux returns nil when influx is disabled or fails to start.
func connectInflux(ctx context.Context, zlog zerolog.Logger) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}
	if dir := filepath.Dir(cfg.BackupPath); dir != "" {
		_ = os.MkdirAll(dir, 0755)
	}
	m := influx.NewManager(cfg, zlog.With().Str("component", "influx").Logger())
	if err := m.Connect(ctx); err != nil {
		zlog.Error().Err(err).Msg("InfluxDB disabled")
		return nil
	}
	return m
}

// uploadExport sends the session file written by exporting backends to the web frontend.
func uploadExport(ctx context.Context, backend storage.Backend, d *director.Director, logger *slog.Logger) {
	ucfg := config.GetUploadConfig()
	exp, ok := backend.(storage.Exporter)
	if !ucfg.Enabled || !ok {
		return
	}
	path := exp.GetExportedFilePath()
	s := d.Session()
	if path == "" || s == nil {
		return
	}

	client := api.NewClient(ucfg.URL, ucfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("Upload target not reachable, keeping export on disk", "path", path, "error", err)
		return
	}
	if err := client.Upload(ctx, path, api.MetadataFromSession(s)); err != nil {
		logger.Error("Failed to upload session export", "path", path, "error", err)
		return
	}
	logger.Info("Session export uploaded", "path", path)
}
