package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/centinela-home/centinela/internal/logger"
	"github.com/centinela-home/centinela/internal/notification"
)

// SSE connection configuration.
const (
	defaultMaxConnectionDuration = 30 * time.Minute
	defaultHeartbeatInterval     = 30 * time.Second
	rateLimitWindow              = 1 * time.Minute
	rateLimitRequestsPerWindow   = 10
	rateLimitBurst               = 15
)

// initStreamRoutes registers the live event stream endpoint.
func (c *Controller) initStreamRoutes() {
	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rateLimitRequestsPerWindow,
				Burst:     rateLimitBurst,
				ExpiresIn: rateLimitWindow,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many stream connection attempts, please wait before trying again",
			})
		},
	}

	c.Group.GET("/events", c.StreamEvents, middleware.RateLimiterWithConfig(rateLimiterConfig))
}

// StreamEvents holds an SSE connection open and forwards live events
// (alert.created, alert.video_ready, device.status) to the client.
func (c *Controller) StreamEvents(ctx echo.Context) error {
	if !notification.IsInitialized() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Live event stream not available",
		})
	}

	maxDuration := defaultMaxConnectionDuration
	heartbeat := defaultHeartbeatInterval
	if c.Settings != nil {
		if d := c.Settings.Push.MaxConnectionDuration.Std(); d > 0 {
			maxDuration = d
		}
		if d := c.Settings.Push.HeartbeatInterval.Std(); d > 0 {
			heartbeat = d
		}
	}

	if c.metrics != nil {
		c.metrics.SSEConnections.Inc()
		defer c.metrics.SSEConnections.Dec()
	}

	// Bound total connection lifetime to prevent resource leaks.
	timeoutCtx, cancel := context.WithTimeout(ctx.Request().Context(), maxDuration)
	defer cancel()

	setSSEHeaders(ctx)

	clientID := uuid.New().String()
	service := notification.GetService()
	eventCh, subCtx := service.Subscribe()
	defer service.Unsubscribe(eventCh)

	if err := c.sendSSEMessage(ctx, "connected", map[string]string{
		"client_id": clientID,
		"message":   "Connected to event stream",
	}); err != nil {
		return err
	}

	c.logStreamConnection(ctx, clientID, true)
	defer c.logStreamConnection(ctx, clientID, false)

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-eventCh:
			if !ok {
				// Service is shutting down.
				return nil
			}
			if err := c.sendSSEMessage(ctx, event.Kind, event); err != nil {
				c.log.Debug("failed to send live event",
					logger.String("client_id", clientID),
					logger.Error(err))
				return err
			}

		case <-ticker.C:
			if err := c.sendSSEMessage(ctx, "heartbeat", map[string]string{
				"timestamp": time.Now().Format(time.RFC3339),
			}); err != nil {
				return err
			}

		case <-timeoutCtx.Done():
			// Client disconnected or maximum duration reached.
			return nil

		case <-subCtx.Done():
			// Subscription cancelled by service shutdown.
			return nil
		}
	}
}

// setSSEHeaders prepares the response for event streaming.
func setSSEHeaders(ctx echo.Context) {
	h := ctx.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	ctx.Response().WriteHeader(http.StatusOK)
}

// sendSSEMessage writes one SSE event frame and flushes it.
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(ctx.Response(), "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	ctx.Response().Flush()
	return nil
}

func (c *Controller) logStreamConnection(ctx echo.Context, clientID string, connected bool) {
	action := "connected"
	if !connected {
		action = "disconnected"
	}
	if c.debugEnabled() {
		c.log.Debug("live stream client "+action,
			logger.String("client_id", clientID),
			logger.String("ip", ctx.RealIP()))
	}
}
