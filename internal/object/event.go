package object

import "sync"

// EventRegistration is one que_events registration: a set of named counters
// the client wants to be notified about, plus the callback the event
// thread invokes when the server posts a change or the connection dies.
type EventRegistration struct {
	Handle           int32
	AttachmentHandle int32
	AuxHandle        int32
	Names            []string

	mu     sync.Mutex
	fired  bool
	notify func(counts []uint32)
}

// EventManager tracks every event registration live on a connection.
type EventManager struct {
	registry *Registry[EventRegistration]
}

// NewEventManager returns an empty manager.
func NewEventManager() *EventManager {
	return &EventManager{registry: NewRegistry[EventRegistration]()}
}

// Register records que_events for att and returns the registration's
// handle. notify is invoked from the event thread, never from the
// synchronous port's goroutine.
func (m *EventManager) Register(att *Attachment, names []string, notify func(counts []uint32)) *EventRegistration {
	ev := &EventRegistration{AttachmentHandle: att.Handle, Names: names, notify: notify}
	ev.Handle = m.registry.Register(ev)
	att.Events.Adopt(ev.Handle, ev)
	return ev
}

// Lookup resolves a handle to its event registration, raising bad-events on
// a miss.
func (m *EventManager) Lookup(handle int32) (*EventRegistration, error) {
	ev, ok := m.registry.Lookup(handle)
	if !ok {
		return nil, errBadEvents(handle)
	}
	return ev, nil
}

// Fire delivers counts to the registration's callback for a real posted
// notification, and marks the registration as having delivered at least
// once, so a cancel racing behind it does not also synthesize a
// zero-length fallback the caller no longer needs.
func (ev *EventRegistration) Fire(counts []uint32) {
	ev.mu.Lock()
	ev.fired = true
	notify := ev.notify
	ev.mu.Unlock()
	if notify != nil {
		notify(counts)
	}
}

// fireOnce delivers a single zero-length notification - "server gone, retry
// from scratch" - unless a real Fire (or an earlier fireOnce) already
// delivered something, in which case it is a no-op: this is the cancel's
// half of "cancel races with fire", so cancelling an event that was never
// posted still wakes the caller's callback exactly once.
func (ev *EventRegistration) fireOnce(counts []uint32) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.fired {
		return
	}
	ev.fired = true
	if ev.notify != nil {
		ev.notify(counts)
	}
}

// release drops handle without firing anything; used when a caller (the
// attachment's Detach walk) has already delivered the teardown
// notification itself and only needs the canonical entry removed.
func (m *EventManager) release(handle int32) {
	m.registry.Release(handle)
}

// Cancel unregisters handle. If the event was never posted, the cancel
// itself delivers the fire-once zero-length notification so the client's
// callback still runs exactly once, satisfying P6 even when cancel races
// ahead of a pending server notification.
func (m *EventManager) Cancel(handle int32) error {
	ev, err := m.Lookup(handle)
	if err != nil {
		return err
	}
	ev.fireOnce(nil)
	m.registry.Release(handle)
	return nil
}

// TeardownAll fires a zero-length notification on every still-registered
// event, for the async channel's "server death" handling, and empties the
// registry.
func (m *EventManager) TeardownAll() {
	m.registry.Range(func(handle int32, ev *EventRegistration) bool {
		ev.fireOnce(nil)
		m.registry.Release(handle)
		return true
	})
}
