// Package api implements the HTTP surface: alert intake, listing and
// deletion, device status updates, the live SSE stream, and operational
// endpoints.
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/centinela-home/centinela/internal/capture"
	"github.com/centinela-home/centinela/internal/conf"
	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/fanout"
	"github.com/centinela-home/centinela/internal/identity"
	"github.com/centinela-home/centinela/internal/logger"
	"github.com/centinela-home/centinela/internal/observability"
)

// Controller handles API requests under /api/v1.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	alerts   repository.AlertRepository
	devices  repository.DeviceRepository
	resolver *identity.Resolver
	bus      *fanout.Bus
	capture  *capture.Orchestrator
	registry *prometheus.Registry
	metrics  *observability.Metrics
	log      logger.Logger
}

// Config wires the Controller's collaborators.
type Config struct {
	Settings *conf.Settings
	Alerts   repository.AlertRepository
	Devices  repository.DeviceRepository
	Resolver *identity.Resolver
	Bus      *fanout.Bus
	// Capture is nil when video capture is disabled.
	Capture  *capture.Orchestrator
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Log      logger.Logger
}

// New creates the Controller and registers all routes on e.
func New(e *echo.Echo, cfg Config) *Controller {
	c := &Controller{
		Echo:     e,
		Group:    e.Group("/api/v1"),
		Settings: cfg.Settings,
		alerts:   cfg.Alerts,
		devices:  cfg.Devices,
		resolver: cfg.Resolver,
		bus:      cfg.Bus,
		capture:  cfg.Capture,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
	}

	c.initAlertRoutes()
	c.initDeviceRoutes()
	c.initStreamRoutes()
	c.initSystemRoutes()
	return c
}

// initSystemRoutes registers operational endpoints and the media file tree.
func (c *Controller) initSystemRoutes() {
	c.Echo.GET("/healthz", c.Health)

	if c.registry != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})))
	}

	if c.Settings != nil && c.Settings.Capture.Enabled {
		c.Echo.Static("/media", c.Settings.Capture.OutputDir)
	}
}

// Health reports process liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleError logs err and returns a JSON error response with the given
// user-facing message.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if code >= http.StatusInternalServerError {
		c.log.Error(message, logger.Error(err), logger.String("path", ctx.Path()))
	}
	return ctx.JSON(code, map[string]string{"error": message})
}

// parseUintParam parses a numeric path parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// debugEnabled reports whether verbose request logging is on.
func (c *Controller) debugEnabled() bool {
	return c.Settings != nil && c.Settings.WebServer.Debug
}
