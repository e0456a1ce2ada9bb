package events

import (
	"fmt"
	"sync"
)

// Kind identifies the type of an Event.
type Kind int

const (
	// Connected is published when the realtime channel is established.
	Connected Kind = iota + 1

	// Disconnected is published when the realtime channel is lost.
	Disconnected

	// DeviceUpdated is published when the vendor reports a device change.
	DeviceUpdated

	// DeviceRefreshed is published after a device model was re-derived from
	// a freshly fetched record.
	DeviceRefreshed
)

func (k Kind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case DeviceUpdated:
		return "device_updated"
	case DeviceRefreshed:
		return "device_refreshed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is a single notification. DeviceID is set for device events.
type Event struct {
	Kind     Kind
	DeviceID string
}

// Handler receives events. It runs on the publisher's goroutine and must not
// block for long.
type Handler func(Event)

// Logger is the logging surface the bus needs.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

type subscription struct {
	id      uint64
	kinds   map[Kind]struct{}
	handler Handler
}

func (s *subscription) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Bus dispatches events to subscribers.
//
// Thread Safety: All methods are safe for concurrent use. Handlers may
// subscribe or unsubscribe from inside a handler.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64
	logger Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{logger: noopLogger{}}
}

// SetLogger sets the logger used to report handler panics.
func (b *Bus) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Subscribe registers handler for the given kinds, or for every kind when
// none are given. The returned function removes the subscription and is
// safe to call more than once.
func (b *Bus) Subscribe(handler Handler, kinds ...Kind) (unsubscribe func()) {
	sub := &subscription{handler: handler}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every matching subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subs
	logger := b.logger
	b.mu.RUnlock()

	for _, s := range subs {
		if s.wants(ev.Kind) {
			b.deliver(s, ev, logger)
		}
	}
}

func (b *Bus) deliver(s *subscription, ev Event, logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in event handler",
				"kind", ev.Kind.String(),
				"device_id", ev.DeviceID,
				"panic", r,
			)
		}
	}()
	s.handler(ev)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
