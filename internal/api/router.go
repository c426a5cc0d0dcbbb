// Package api exposes the host's command surface: one HTTP endpoint per
// shell command, a WebSocket event stream for syscalls, and the usual
// operational endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/gmfc/helios-os/internal/bridge"
	"github.com/gmfc/helios-os/internal/isolate"
	"github.com/gmfc/helios-os/internal/netfabric"
	"github.com/gmfc/helios-os/internal/persistence"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires together every component and exposes it over HTTP.
type Server struct {
	echo *echo.Echo
	hub  *Hub

	store   *persistence.Store
	fabric  *netfabric.Fabric
	bridge  *bridge.Bridge
	runtime *isolate.Runtime

	defaultQuotaMS   int
	defaultQuotaMemB int
	defaultSliceMS   int
}

// Deps bundles Server's collaborators. Hub must be the same Hub whose
// Broadcast method was passed to bridge.New when constructing Bridge.
type Deps struct {
	Hub              *Hub
	Store            *persistence.Store
	Fabric           *netfabric.Fabric
	Bridge           *bridge.Bridge
	Runtime          *isolate.Runtime
	APIKey           string
	DefaultQuotaMS   int
	DefaultQuotaMemB int
	DefaultSliceMS   int
}

// NewServer builds the echo router with every command route registered.
func NewServer(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:             e,
		hub:              d.Hub,
		store:            d.Store,
		fabric:           d.Fabric,
		bridge:           d.Bridge,
		runtime:          d.Runtime,
		defaultQuotaMS:   d.DefaultQuotaMS,
		defaultQuotaMemB: d.DefaultQuotaMemB,
		defaultSliceMS:   d.DefaultSliceMS,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/events", s.events)

	cmds := e.Group("/commands")
	cmds.Use(requireAPIKey(d.APIKey))

	cmds.POST("/save_fs", s.saveFS)
	cmds.POST("/load_fs", s.loadFS)
	cmds.POST("/save_snapshot", s.saveSnapshot)
	cmds.POST("/load_snapshot", s.loadSnapshot)
	cmds.POST("/save_named_snapshot", s.saveNamedSnapshot)
	cmds.POST("/load_named_snapshot", s.loadNamedSnapshot)
	cmds.POST("/run_isolate", s.runIsolate)
	cmds.POST("/run_isolate_slice", s.runIsolateSlice)
	cmds.POST("/drop_isolate", s.dropIsolate)
	cmds.POST("/register_nic", s.registerNIC)
	cmds.POST("/send_frame", s.sendFrame)
	cmds.POST("/receive_frames", s.receiveFrames)
	cmds.POST("/wifi_scan", s.wifiScan)
	cmds.POST("/wifi_join", s.wifiJoin)
	cmds.POST("/syscall_response", s.syscallResponse)

	return s
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errJSON(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"error": err.Error()})
}
