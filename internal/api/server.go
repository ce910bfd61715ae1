// Package api serves the player's control surface over HTTP and uploads
// finished session exports to a web frontend.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/internal/control"
	"github.com/OCAP2/flyover/internal/director"
	"github.com/OCAP2/flyover/internal/dispatcher"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatcher runs control commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd dispatcher.Command) (any, error)
}

// Server is the HTTP control API.
type Server struct {
	router   *gin.Engine
	disp     Dispatcher
	logger   *slog.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	http     *http.Server
}

// New builds the router. Nothing listens until Start.
func New(cfg config.APIConfig, disp Dispatcher, logger *slog.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:   gin.New(),
		disp:     disp,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flyover_http_requests_total",
				Help: "HTTP requests handled by the control API",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flyover_http_request_duration_seconds",
				Help:    "Control API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	s.registry.MustRegister(
		s.requests,
		s.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}

	s.router.Use(gin.Recovery(), s.observe(), cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "flyover"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/player", s.command(control.CmdStatus))
		v1.POST("/player/restart", s.command(control.CmdRestart))
		v1.POST("/player/stop", s.command(control.CmdStop))
		v1.GET("/visits", s.visits)
	}
}

// Registry exposes the Prometheus registry so other components can add collectors.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background. Errors other than a clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Control API listening", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Control API stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// observe records request metrics and logs each request, skipping scrapes.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		s.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.latency.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		if route == "/metrics" {
			return
		}
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed,
			"client", c.ClientIP(),
		)
	}
}

func (s *Server) command(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.disp.Dispatch(c.Request.Context(), dispatcher.Command{Name: name})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) visits(c *gin.Context) {
	var args []string
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		args = append(args, limit)
	}

	res, err := s.disp.Dispatch(c.Request.Context(), dispatcher.Command{Name: control.CmdVisits, Args: args})
	if err != nil {
		s.fail(c, err)
		return
	}
	visits, _ := res.([]core.Visit)
	c.JSON(http.StatusOK, gin.H{"visits": control.NewVisitViews(visits)})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, director.ErrNotStarted):
		status = http.StatusConflict
	case errors.Is(err, control.ErrNoSession), errors.Is(err, dispatcher.ErrUnknownCommand):
		status = http.StatusNotFound
	case errors.Is(err, control.ErrVisitsUnsupported):
		status = http.StatusNotImplemented
	case errors.Is(err, dispatcher.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Control command failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
