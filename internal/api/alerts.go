package api

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/centinela-home/centinela/internal/capture"
	"github.com/centinela-home/centinela/internal/conf"
	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/errors"
	"github.com/centinela-home/centinela/internal/fanout"
	"github.com/centinela-home/centinela/internal/logger"
	"github.com/centinela-home/centinela/internal/observability"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AlertRequest is the inbound gateway payload for POST /api/v1/alerts.
// Device and Sensor carry display names; historical firmware sends raw
// numeric IDs instead, which the identity resolver also accepts.
type AlertRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Device  string `json:"device"`
	Sensor  string `json:"sensor"`
	// Duration overrides the configured recording length, in seconds.
	Duration int `json:"duration,omitempty"`
	// VideoPath is set when the gateway already recorded a clip itself;
	// it bypasses the capture pipeline entirely.
	VideoPath string `json:"video_path,omitempty"`
}

// initAlertRoutes registers alert intake and CRUD endpoints.
func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")
	alerts.POST("", c.CreateAlert)
	alerts.GET("", c.ListAlerts)
	alerts.GET("/:id", c.GetAlert)
	alerts.DELETE("/:id", c.DeleteAlert)
}

// CreateAlert is the intake endpoint. The response is sent as soon as the
// alert is durably stored; capture and notification fan-out are started
// fire-and-forget and their failures never reach the gateway.
func (c *Controller) CreateAlert(ctx echo.Context) error {
	var req AlertRequest
	if err := ctx.Bind(&req); err != nil {
		c.countIngest(observability.OutcomeRejected)
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	if req.Type == "" || req.Message == "" || req.Device == "" || req.Sensor == "" {
		c.countIngest(observability.OutcomeRejected)
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "Fields type, message, device and sensor are required",
		})
	}

	device, sensor, err := c.resolver.Resolve(ctx.Request().Context(), req.Device, req.Sensor)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDeviceNotFound):
			c.countIngest(observability.OutcomeRejected)
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "Unknown device: " + req.Device,
			})
		case errors.Is(err, repository.ErrSensorNotFound):
			c.countIngest(observability.OutcomeRejected)
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "Unknown sensor: " + req.Sensor,
			})
		default:
			c.countIngest(observability.OutcomeFailed)
			return c.HandleError(ctx, err, "Failed to resolve device and sensor", http.StatusInternalServerError)
		}
	}

	alert := &entities.Alert{
		Type:      req.Type,
		Message:   req.Message,
		DeviceID:  device.ID,
		SensorID:  sensor.ID,
		VideoPath: req.VideoPath,
	}
	if err := c.alerts.Create(ctx.Request().Context(), alert); err != nil {
		c.countIngest(observability.OutcomeFailed)
		return c.HandleError(ctx, err, "Failed to store alert", http.StatusInternalServerError)
	}
	c.countIngest(observability.OutcomeAccepted)

	// The alert is durable; everything from here is detached and cannot
	// change the response.
	alert.Device = *device
	alert.Sensor = *sensor
	c.dispatchAlert(alert, sensor, req)

	return ctx.JSON(http.StatusCreated, map[string]any{
		"alert_id": alert.ID,
	})
}

// dispatchAlert publishes the created alert to the fan-out bus and starts a
// capture job when the sensor type warrants one. Both calls return
// immediately; a disconnected gateway cannot cancel either.
func (c *Controller) dispatchAlert(alert *entities.Alert, sensor *entities.Sensor, req AlertRequest) {
	if c.bus != nil {
		c.bus.Publish(&fanout.Event{Kind: fanout.AlertCreated, Alert: alert})
	}

	// A gateway-supplied recording means there is nothing to capture.
	if c.capture == nil || req.VideoPath != "" || !c.Settings.CaptureSensorType(sensor.Type) {
		return
	}

	duration := c.Settings.Capture.DefaultDuration.Std()
	if duration <= 0 {
		duration = conf.DefaultCaptureDuration
	}
	if req.Duration > 0 {
		duration = time.Duration(req.Duration) * time.Second
	}

	if _, err := c.capture.Start(alert.ID, sensor.Type, duration); err != nil {
		if errors.Is(err, capture.ErrCaptureInFlight) || errors.Is(err, capture.ErrStopped) {
			c.log.Debug("capture not started",
				logger.Uint64("alert_id", uint64(alert.ID)),
				logger.Error(err))
			return
		}
		c.log.Error("failed to start capture",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.Error(err))
	}
}

// ListAlerts returns stored alerts newest first. Optional filters:
// device_id narrows to one device, user_id narrows to the devices
// associated with that user.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := repository.AlertFilter{Limit: defaultListLimit}

	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		filter.Limit = min(limit, maxListLimit)
	}
	if offsetParam := ctx.QueryParam("offset"); offsetParam != "" {
		offset, err := strconv.Atoi(offsetParam)
		if err != nil || offset < 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid offset"})
		}
		filter.Offset = offset
	}

	if deviceParam := ctx.QueryParam("device_id"); deviceParam != "" {
		id, err := strconv.ParseUint(deviceParam, 10, 32)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid device_id"})
		}
		filter.DeviceIDs = []uint{uint(id)}
	} else if userParam := ctx.QueryParam("user_id"); userParam != "" {
		id, err := strconv.ParseUint(userParam, 10, 32)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user_id"})
		}
		devices, err := c.devices.ListByUser(ctx.Request().Context(), uint(id))
		if err != nil {
			return c.HandleError(ctx, err, "Failed to resolve user devices", http.StatusInternalServerError)
		}
		if len(devices) == 0 {
			return ctx.JSON(http.StatusOK, map[string]any{"alerts": []entities.Alert{}, "count": 0})
		}
		for _, d := range devices {
			filter.DeviceIDs = append(filter.DeviceIDs, d.ID)
		}
	}

	alerts, err := c.alerts.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert returns one alert with its resolved device and sensor.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}

	alert, err := c.alerts.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, alert)
}

// DeleteAlert removes the alert row, then best-effort removes the recorded
// clip. A missing file on disk is not an error.
func (c *Controller) DeleteAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}

	alert, err := c.alerts.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	if err := c.alerts.Delete(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to delete alert", http.StatusInternalServerError)
	}

	if alert.VideoPath != "" {
		if err := os.Remove(alert.VideoPath); err != nil && !os.IsNotExist(err) {
			c.log.Warn("failed to remove clip for deleted alert",
				logger.Uint64("alert_id", uint64(id)),
				logger.String("path", alert.VideoPath),
				logger.Error(err))
		}
	}

	return ctx.JSON(http.StatusOK, map[string]string{"message": "Alert deleted"})
}

func (c *Controller) countIngest(outcome string) {
	if c.metrics != nil {
		c.metrics.AlertsIngested.WithLabelValues(outcome).Inc()
	}
}
