// Package fanout decouples alert intake from delivery. Intake publishes
// events to an async bus; the dispatcher consumes them and drives live push
// and mail so HTTP handlers never wait on slow recipients.
package fanout

import (
	"sync"
	"time"

	"github.com/centinela-home/centinela/internal/datastore/entities"
)

// EventKind discriminates bus events.
type EventKind string

const (
	// AlertCreated fires after an alert row is persisted.
	AlertCreated EventKind = "alert.created"
	// CaptureCompleted fires after a video clip was recorded and linked.
	CaptureCompleted EventKind = "capture.completed"
	// DeviceStatusChanged fires after a device status update is stored.
	DeviceStatusChanged EventKind = "device.status_changed"
)

// Event carries a single fan-out unit of work. Alert and Device are set
// depending on Kind; VideoPath is set for CaptureCompleted.
type Event struct {
	Kind      EventKind
	Alert     *entities.Alert
	Device    *entities.Device
	VideoPath string
	Timestamp time.Time
}

// Handler processes bus events.
type Handler func(event *Event)

// busBufferSize is the capacity of the async event channel. Events are
// dropped if the buffer is full to avoid blocking intake.
const busBufferSize = 256

// Bus is an async pub/sub for fan-out events. Publish is non-blocking:
// events are sent to a buffered channel and processed by a worker
// goroutine, so alert intake is never blocked by mail delivery.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex
	eventCh  chan *Event
	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
	dropFn   func()
}

// NewBus creates a fan-out bus and starts its worker. dropFn, when non-nil,
// is invoked once per event dropped on overflow (metrics hook).
func NewBus(dropFn func()) *Bus {
	b := &Bus{
		handlers: make([]Handler, 0),
		eventCh:  make(chan *Event, busBufferSize),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
		dropFn:   dropFn,
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for bus events.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event for async processing. Non-blocking: if the
// buffer is full the event is dropped to protect the intake path. Events
// are silently discarded after Stop has been called.
func (b *Bus) Publish(event *Event) {
	select {
	case <-b.stopCh:
		return
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	default:
		if b.dropFn != nil {
			b.dropFn()
		}
	}
}

// Stop shuts down the worker after draining queued events. Safe to call
// multiple times; returns once the worker has exited.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.stopped
}

// processLoop drains the event channel and dispatches to handlers.
func (b *Bus) processLoop() {
	defer close(b.stopped)
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			// Drain remaining events before exiting.
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event *Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall invokes a handler with panic recovery so a panicking handler
// cannot kill the bus goroutine.
func (b *Bus) safeCall(handler Handler, event *Event) {
	defer func() {
		recover() //nolint:errcheck // intentionally swallowed to keep bus alive
	}()
	handler(event)
}
