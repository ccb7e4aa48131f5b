// Package events is an in-process publish/subscribe bus. Handlers run
// asynchronously and are drained on shutdown.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"go.uber.org/zap"
)

// EventType represents the type of event.
type EventType string

const (
	// EventOfferChanged is emitted after any committed offer mutation
	EventOfferChanged EventType = "offer.changed"
	// EventTargetChanged is emitted after a target is created or updated
	EventTargetChanged EventType = "target.changed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// OfferChangedData describes a committed offer mutation
type OfferChangedData struct {
	OfferID         uuid.UUID
	ReferenceNumber string
	ZoneID          uuid.UUID
	Action          domain.ActivityAction
	Stage           domain.OfferStage
}

// TargetChangedData describes a created or updated target
type TargetChangedData struct {
	TargetID uuid.UUID
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewManager creates a new event manager.
func NewManager(enabled bool, logger *zap.Logger) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		logger:   logger,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish runs every subscribed handler in its own goroutine. Handlers get a
// context detached from the caller's cancellation.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.enabled {
		return
	}

	handlers := m.handlers[eventType]
	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	hctx := context.WithoutCancel(ctx)

	for _, handler := range handlers {
		m.wg.Add(1)
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(hctx, event); err != nil {
				m.logger.Warn("event handler failed",
					zap.String("event", string(eventType)),
					zap.Error(err),
				)
			}
		}(handler)
	}
}

// PublishOfferChanged publishes an offer.changed event.
func (m *Manager) PublishOfferChanged(ctx context.Context, data OfferChangedData) {
	m.Publish(ctx, EventOfferChanged, data)
}

// PublishTargetChanged publishes a target.changed event.
func (m *Manager) PublishTargetChanged(ctx context.Context, targetID uuid.UUID) {
	m.Publish(ctx, EventTargetChanged, TargetChangedData{TargetID: targetID})
}

// Shutdown stops accepting events and waits for running handlers, up to the
// context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
