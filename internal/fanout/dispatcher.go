package fanout

import (
	"context"
	"time"

	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/errors"
	"github.com/centinela-home/centinela/internal/logger"
	"github.com/centinela-home/centinela/internal/notification"
	"github.com/centinela-home/centinela/internal/observability"
)

// LivePublisher abstracts the live push service for testability.
type LivePublisher interface {
	Publish(event notification.Event)
}

const defaultRecipientTimeout = 10 * time.Second

// Dispatcher consumes fan-out events and drives delivery: live push first,
// then mail to every user linked to the alert's device. Mail failures are
// isolated per recipient and never surface to intake.
type Dispatcher struct {
	live             LivePublisher
	mailer           notification.Mailer
	devices          repository.DeviceRepository
	alerts           repository.AlertRepository
	recipientTimeout time.Duration
	log              logger.Logger
	metrics          *observability.Metrics
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Live             LivePublisher
	Mailer           notification.Mailer
	Devices          repository.DeviceRepository
	Alerts           repository.AlertRepository
	RecipientTimeout time.Duration
	Log              logger.Logger
	Metrics          *observability.Metrics
}

// NewDispatcher creates a Dispatcher and registers it on the bus.
func NewDispatcher(bus *Bus, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		live:             cfg.Live,
		mailer:           cfg.Mailer,
		devices:          cfg.Devices,
		alerts:           cfg.Alerts,
		recipientTimeout: cfg.RecipientTimeout,
		log:              cfg.Log,
		metrics:          cfg.Metrics,
	}
	if d.recipientTimeout <= 0 {
		d.recipientTimeout = defaultRecipientTimeout
	}
	bus.Subscribe(d.Handle)
	return d
}

// Handle routes one bus event. Runs on the bus worker goroutine; dispatch
// uses background contexts so a disconnected HTTP client cannot cancel
// delivery already in progress.
func (d *Dispatcher) Handle(event *Event) {
	switch event.Kind {
	case AlertCreated:
		d.handleAlertCreated(event)
	case CaptureCompleted:
		d.handleCaptureCompleted(event)
	case DeviceStatusChanged:
		d.handleDeviceStatus(event)
	default:
		d.log.Warn("unknown fanout event kind", logger.String("kind", string(event.Kind)))
	}
}

// handleAlertCreated pushes the live event before any mail goes out, so
// connected clients always see the alert first.
func (d *Dispatcher) handleAlertCreated(event *Event) {
	if event.Alert == nil {
		d.log.Warn("alert.created event without alert payload")
		return
	}

	if d.live != nil {
		d.live.Publish(notification.NewAlertEvent(notification.EventAlertCreated, event.Alert))
		if d.metrics != nil {
			d.metrics.LiveEvents.WithLabelValues(notification.EventAlertCreated).Inc()
		}
	}

	d.mailAlert(event)
}

func (d *Dispatcher) mailAlert(event *Event) {
	if d.mailer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.recipientTimeout)
	users, err := d.devices.ListUsers(ctx, event.Alert.DeviceID)
	cancel()
	if err != nil {
		d.log.Error("failed to resolve mail recipients",
			logger.Uint64("alert_id", uint64(event.Alert.ID)),
			logger.Uint64("device_id", uint64(event.Alert.DeviceID)),
			logger.Error(err))
		return
	}
	if len(users) == 0 {
		d.log.Debug("no recipients for device",
			logger.Uint64("device_id", uint64(event.Alert.DeviceID)))
		return
	}

	// One recipient at a time, each with its own timeout. A failure for one
	// recipient must not abort delivery to the rest.
	for i := range users {
		recipient := users[i].Email
		sendCtx, cancel := context.WithTimeout(context.Background(), d.recipientTimeout)
		err := d.mailer.Send(sendCtx, recipient, event.Alert)
		cancel()

		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeFailed
			if errors.GetCategory(err) == errors.CategoryTimeout {
				outcome = observability.OutcomeTimeout
			}
			d.log.Error("mail delivery failed",
				logger.Uint64("alert_id", uint64(event.Alert.ID)),
				logger.String("recipient", recipient),
				logger.Error(err))
		}
		if d.metrics != nil {
			d.metrics.MailDispatch.WithLabelValues(outcome).Inc()
		}
	}
}

// handleCaptureCompleted re-reads the alert so the pushed event carries the
// stored video path and preloaded device and sensor.
func (d *Dispatcher) handleCaptureCompleted(event *Event) {
	if d.live == nil || event.Alert == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.recipientTimeout)
	defer cancel()
	alert, err := d.alerts.Get(ctx, event.Alert.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			// Deleted after the clip was linked; nothing to announce.
			d.log.Debug("alert gone before video_ready fanout",
				logger.Uint64("alert_id", uint64(event.Alert.ID)))
			return
		}
		d.log.Error("failed to load alert for video_ready fanout",
			logger.Uint64("alert_id", uint64(event.Alert.ID)),
			logger.Error(err))
		return
	}

	if alert.VideoPath == "" {
		// The store read raced the path update; the event carries the path
		// the capture job just produced.
		alert.VideoPath = event.VideoPath
	}

	d.live.Publish(notification.NewAlertEvent(notification.EventAlertVideoReady, alert))
	if d.metrics != nil {
		d.metrics.LiveEvents.WithLabelValues(notification.EventAlertVideoReady).Inc()
	}
}

func (d *Dispatcher) handleDeviceStatus(event *Event) {
	if d.live == nil || event.Device == nil {
		return
	}
	d.live.Publish(notification.NewDeviceStatusEvent(event.Device))
	if d.metrics != nil {
		d.metrics.LiveEvents.WithLabelValues(notification.EventDeviceStatus).Inc()
	}
}
