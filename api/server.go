package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/mediaflow/config"
	"github.com/kbukum/mediaflow/logger"
)

// Server serves the API over HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	httpServer *http.Server
	cfg        config.HTTPConfig
	log        *logger.Logger
	addr       string
}

// New creates a server for eng. cfg should have defaults applied.
func New(cfg config.HTTPConfig, eng Engine) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.Get("api")

	router := gin.New()
	router.Use(recovery(log), requestID(), requestLogger(log))
	(&handlers{engine: eng}).register(router)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           h2c.NewHandler(router, h2s),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		cfg:  cfg,
		log:  log,
		addr: cfg.Address,
	}
}

// Handler returns the root handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start binds the address and serves in the background. It returns once
// the listener is bound.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("api: bind %s: %w", s.httpServer.Addr, err)
	}
	s.addr = ln.Addr().String()
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("server stopped")
		}
	}()
	s.log.Info("api listening", map[string]interface{}{"addr": s.addr})
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string { return s.addr }

// Stop shuts down gracefully within the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	s.log.Info("api stopped")
	return nil
}
