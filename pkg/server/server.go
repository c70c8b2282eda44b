// Package server exposes the coordinator's control commands over HTTP and
// streams run events to websocket clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/entrhq/lumina/pkg/logging"
	"github.com/entrhq/lumina/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("server")
	if err != nil {
		debugLog.Warnf("Failed to initialize server logger, using stderr fallback: %v", err)
	}
}

// Version is reported by /healthz.
var Version = "dev"

// Backend answers control commands and publishes run events.
type Backend interface {
	Handle(ctx context.Context, cmd types.Command) types.Response
	Subscribe(fn func(*types.RunEvent)) (unsubscribe func())
}

// Options tunes the websocket side of the server.
type Options struct {
	MaxMessageSize int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// DefaultOptions returns the websocket limits used by lumina serve.
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 1 << 20,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = def.MaxMessageSize
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.ReadTimeout {
		o.PingInterval = o.ReadTimeout * 9 / 10
	}
	return o
}

// Server is the HTTP control surface.
type Server struct {
	backend Backend
	opts    Options
	echo    *echo.Echo
	hub     *Hub
	ws      *wsHandler

	unsubscribe func()
}

// New builds a server over backend and subscribes its hub to run events.
func New(backend Backend, opts Options) *Server {
	opts = opts.withDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(debugLog.Writer())

	hub := NewHub()
	s := &Server{
		backend: backend,
		opts:    opts,
		echo:    e,
		hub:     hub,
	}
	s.ws = newWSHandler(backend, hub, opts)
	s.unsubscribe = backend.Subscribe(func(ev *types.RunEvent) {
		hub.BroadcastJSON(Frame{Event: ev})
	})
	s.RegisterRoutes(e)
	return s
}

// RegisterRoutes registers the control routes on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Health)
	v1 := e.Group("/v1")
	v1.POST("/commands", s.Command)
	v1.GET("/events", s.ws.HandleWebSocket)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Health reports liveness.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"version":     Version,
		"connections": s.hub.ConnectionCount(),
	})
}

// Command answers one control command. Every decodable command gets 200;
// whether it succeeded is in the body.
func (s *Server) Command(c echo.Context) error {
	var cmd types.Command
	if err := c.Bind(&cmd); err != nil {
		return c.JSON(http.StatusBadRequest, types.Failf("invalid command: %v", err))
	}
	if cmd.Type == "" {
		return c.JSON(http.StatusBadRequest, types.Failf("invalid command: missing type"))
	}

	resp := s.backend.Handle(c.Request().Context(), cmd).Normalize()
	if !resp.Success {
		debugLog.Infof("%s failed: %s", cmd.Type, resp.Error)
	}
	return c.JSON(http.StatusOK, resp)
}

// Start runs the hub and serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		debugLog.Infof("listening on %s", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections and detaches from the backend.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.hub.CloseAll()
	return s.echo.Shutdown(ctx)
}
