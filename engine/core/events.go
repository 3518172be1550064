package core

import (
	"sync"

	"github.com/google/uuid"
)

// System internal event codes. Application should use codes beyond 255.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED EventCode = 0x08
	// The configuration file changed on disk. Data: the reloaded configuration.
	EVENT_CODE_CONFIG_RELOADED EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	id       uuid.UUID
	callback FnOnEvent
}

// EventBus dispatches events synchronously, in registration order, on the
// goroutine calling Fire.
type EventBus struct {
	mu         sync.RWMutex
	registered map[EventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]registeredEvent),
	}
}

// Register adds a listener for the code and returns the handle needed to
// unregister it.
func (eb *EventBus) Register(code EventCode, onEvent FnOnEvent) uuid.UUID {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := uuid.New()
	eb.registered[code] = append(eb.registered[code], registeredEvent{
		id:       id,
		callback: onEvent,
	})
	return id
}

// Unregister removes the listener with the given handle. It returns false if
// nothing was registered under it.
func (eb *EventBus) Unregister(code EventCode, id uuid.UUID) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	events := eb.registered[code]
	for i := range events {
		if events[i].id == id {
			eb.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire sends the event to the listeners of its code. If a handler returns
// true the event is considered handled and is not passed on.
func (eb *EventBus) Fire(context EventContext) bool {
	eb.mu.RLock()
	events := make([]registeredEvent, len(eb.registered[context.Type]))
	copy(events, eb.registered[context.Type])
	eb.mu.RUnlock()

	for _, e := range events {
		if e.callback(context) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (eb *EventBus) Shutdown() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.registered = make(map[EventCode][]registeredEvent)
}
