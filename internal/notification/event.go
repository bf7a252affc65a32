package notification

import (
	"time"

	"github.com/centinela-home/centinela/internal/datastore/entities"
)

// Event kinds pushed to live subscribers.
const (
	// EventAlertCreated carries a freshly stored alert with its resolved
	// device and sensor.
	EventAlertCreated = "alert.created"
	// EventAlertVideoReady is published when a capture job completes after
	// the alert's creation event has already gone out.
	EventAlertVideoReady = "alert.video_ready"
	// EventDeviceStatus carries a device status change.
	EventDeviceStatus = "device.status"
)

// Event is one message on the live push channel.
type Event struct {
	Kind      string           `json:"kind"`
	Alert     *entities.Alert  `json:"alert,omitempty"`
	Device    *entities.Device `json:"device,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewAlertEvent builds an alert event of the given kind.
func NewAlertEvent(kind string, alert *entities.Alert) Event {
	return Event{Kind: kind, Alert: alert, Timestamp: time.Now()}
}

// NewDeviceStatusEvent builds a device status event.
func NewDeviceStatusEvent(device *entities.Device) Event {
	return Event{Kind: EventDeviceStatus, Device: device, Timestamp: time.Now()}
}
