// Package notification provides the live push service for connected
// dashboard clients and the outbound mail channel.
package notification

import (
	"context"
	"sync"
)

// defaultSubscriberBuffer is the per-subscriber channel capacity. A slow
// subscriber drops events rather than blocking the publisher.
const defaultSubscriberBuffer = 16

// ServiceConfig configures the live push service.
type ServiceConfig struct {
	// SubscriberBuffer overrides the per-subscriber channel capacity.
	SubscriberBuffer int
}

// Service fans live events out to subscribers. Publish never blocks and
// carries no delivery guarantee; clients are expected to poll or
// re-subscribe to recover missed events.
type Service struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]chan Event
	bufferSize  int
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewService creates a live push service.
func NewService(config *ServiceConfig) *Service {
	buffer := defaultSubscriberBuffer
	if config != nil && config.SubscriberBuffer > 0 {
		buffer = config.SubscriberBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		subscribers: make(map[<-chan Event]chan Event),
		bufferSize:  buffer,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a new live subscriber. The returned context is done
// when the service shuts down.
func (s *Service) Subscribe() (<-chan Event, context.Context) {
	ch := make(chan Event, s.bufferSize)
	s.mu.Lock()
	s.subscribers[ch] = ch
	s.mu.Unlock()
	return ch, s.ctx
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Service) Unsubscribe(ch <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if send, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(send)
	}
}

// Publish delivers an event to every subscriber without blocking. Events
// to a full subscriber buffer are dropped.
func (s *Service) Publish(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop.
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Shutdown cancels subscriber contexts and closes all channels.
func (s *Service) Shutdown() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub, send := range s.subscribers {
		delete(s.subscribers, sub)
		close(send)
	}
}

var (
	instance *Service
	once     sync.Once
	mu       sync.RWMutex
)

// Initialize sets up the global notification service instance.
func Initialize(config *ServiceConfig) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		instance = NewService(config)
	})
}

// GetService returns the global notification service instance, or nil
// before Initialize.
func GetService() *Service {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// MustGetService returns the service instance or panics if not initialized.
func MustGetService() *Service {
	service := GetService()
	if service == nil {
		panic("notification service not initialized")
	}
	return service
}

// IsInitialized checks if the notification service has been initialized.
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return instance != nil
}

// SetServiceForTesting replaces the global instance. Pass nil to reset so
// the next Initialize call creates a fresh service.
func SetServiceForTesting(s *Service) {
	mu.Lock()
	defer mu.Unlock()
	instance = s
	if s == nil {
		once = sync.Once{}
	}
}
