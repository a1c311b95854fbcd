package core

import "sync"

// EventContext carries the payload of an event.
type EventContext struct {
	// Name of the resource the event is about, if any.
	Name string
	// Version of the resource after the change.
	Version int64
	Data    interface{}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// A material was loaded or reloaded from disk.
	/* Context usage:
	 * Name is the material name, Version its version after the load.
	 */
	EVENT_CODE_MATERIAL_LOADED SystemEventCode = 0x02

	// A material file was removed.
	/* Context usage:
	 * Name is the material name.
	 */
	EVENT_CODE_MATERIAL_REMOVED SystemEventCode = 0x03

	// A queue escalated skipped draws into an error.
	/* Context usage:
	 * Data is the error.
	 */
	EVENT_CODE_PIPELINE_STALLED SystemEventCode = 0x04

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events to listeners synchronously on the firing goroutine.
type EventBus struct {
	mutex      sync.RWMutex
	registered map[SystemEventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{registered: map[SystemEventCode][]registeredEvent{}}
}

/**
 * Register to listen for when events are sent with the provided code. A listener
 * can only be registered once per code, a duplicate returns false.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

// Unregister returns false if listener was not registered for code.
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, data EventContext) bool {
	b.mutex.RLock()
	events := append([]registeredEvent(nil), b.registered[code]...)
	b.mutex.RUnlock()

	// callbacks may register or fire further events
	for _, e := range events {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	b.mutex.Lock()
	b.registered = map[SystemEventCode][]registeredEvent{}
	b.mutex.Unlock()
}
