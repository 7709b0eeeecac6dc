// Package server exposes the admin HTTP API: instance inspection and
// control, a loopback respond endpoint, archive search, health, and
// Prometheus metrics. The API is an operator surface; chat platforms never
// talk to it.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"banter/internal/archive"
	"banter/internal/bot"
	"banter/internal/config"
	"banter/internal/logging"
	"banter/internal/metrics"
)

// Server is the admin API over one instance registry.
type Server struct {
	cfg      config.ServerConfig
	registry *bot.Registry
	arch     *archive.Archive
	metrics  *metrics.Metrics
	engine   *gin.Engine
}

// New builds the server and its route table. arch and m may be nil; the
// endpoints they back then report as unavailable.
func New(cfg config.ServerConfig, reg *bot.Registry, arch *archive.Archive, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		registry: reg,
		arch:     arch,
		metrics:  m,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLog(), rateLimit(cfg))
	s.routes()
	return s
}

// Handler returns the http handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api/v1")
	api.GET("/instances", s.listInstances)
	api.GET("/instances/:identity", s.getInstance)
	api.POST("/instances/:identity", s.createInstance)
	api.DELETE("/instances/:identity", s.deleteInstance)
	api.POST("/instances/:identity/reset", s.resetInstance)
	api.POST("/instances/:identity/notes", s.toggleNotes)
	api.POST("/instances/:identity/messages", s.appendMessage)
	api.POST("/instances/:identity/respond", s.respond)
	api.GET("/instances/:identity/archive", s.searchArchive)
}

// Run serves until ctx is cancelled, then drains with a short grace
// period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Server("admin API listening on %s", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Server("admin API stopped")
	return nil
}

// apiResponse is the uniform envelope of every API reply.
type apiResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, apiResponse{Success: false, Error: err.Error()})
}
