package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/errors"
	"github.com/centinela-home/centinela/internal/fanout"
	"github.com/centinela-home/centinela/internal/logger"
)

// DeviceStatusRequest is the body for PATCH /api/v1/devices/:id/status.
type DeviceStatusRequest struct {
	Status string `json:"status"`
}

// initDeviceRoutes registers device endpoints.
func (c *Controller) initDeviceRoutes() {
	devices := c.Group.Group("/devices")
	devices.PATCH("/:id/status", c.UpdateDeviceStatus)
}

// UpdateDeviceStatus stores a device's new status and publishes it to live
// subscribers.
func (c *Controller) UpdateDeviceStatus(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid device ID"})
	}

	var req DeviceStatusRequest
	if err := ctx.Bind(&req); err != nil || req.Status == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Field status is required"})
	}

	if err := c.devices.UpdateStatus(ctx.Request().Context(), id, req.Status); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Device not found"})
		}
		return c.HandleError(ctx, err, "Failed to update device status", http.StatusInternalServerError)
	}

	device, err := c.devices.GetByID(ctx.Request().Context(), id)
	if err != nil {
		// Status is stored; the live event just cannot carry the full record.
		c.log.Warn("failed to load device for status fanout",
			logger.Uint64("device_id", uint64(id)),
			logger.Error(err))
	} else if c.bus != nil {
		c.bus.Publish(&fanout.Event{Kind: fanout.DeviceStatusChanged, Device: device})
	}

	return ctx.JSON(http.StatusOK, map[string]string{"message": "Device status updated"})
}
