// Package event is the synchronous publish/subscribe layer between patched
// host routines and extensions.
//
// Each event kind has its own typed handler list. Publish runs on the
// caller's goroutine and calls handlers in ascending priority order, and in
// registration order within one priority. Handlers see and may mutate the
// same payload. A handler ends delivery by calling StopPropagation on it.
//
// There is no reentrancy guard: a handler that publishes the kind it is
// handling recurses.
package event

import (
	"slices"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/metrics"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
)

// HandlerID identifies one registered handler.
type HandlerID uint64

// Payload is implemented by every event payload through Base.
type Payload interface {
	Stopped() bool
}

// Base carries the propagation flag. Embed it in payload structs.
type Base struct {
	stopped bool
}

// StopPropagation prevents the remaining handlers from seeing the event.
func (b *Base) StopPropagation() {
	b.stopped = true
}

// Stopped reports whether a handler stopped propagation.
func (b *Base) Stopped() bool {
	return b.stopped
}

type kind interface {
	Name() string
	removeOwner(owner plugin.Handle) int
}

// Bus owns a set of event kinds.
type Bus struct {
	log     commonlog.Logger
	metrics metrics.Metrics
	kinds   []kind
	nextID  HandlerID
}

// NewBus creates an empty bus. A nil m disables metrics.
func NewBus(m metrics.Metrics) *Bus {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Bus{
		log:     logging.Get("event"),
		metrics: m,
		// Start IDs at 1 so the zero HandlerID is never valid
		nextID: 1,
	}
}

// RemoveOwner removes every handler registered by owner on every kind of
// the bus and returns how many were removed.
func (b *Bus) RemoveOwner(owner plugin.Handle) int {
	n := 0
	for _, k := range b.kinds {
		n += k.removeOwner(owner)
	}
	if n > 0 {
		b.log.Debug("removed handlers", "owner", owner.String(), "count", n)
	}
	return n
}

type entry[E Payload] struct {
	id       HandlerID
	owner    plugin.Handle
	priority int
	fn       func(E)
	removed  bool
}

// Kind is the handler list of one event kind.
type Kind[E Payload] struct {
	name     string
	bus      *Bus
	handlers []*entry[E]
}

// NewKind creates an event kind on bus.
func NewKind[E Payload](bus *Bus, name string) *Kind[E] {
	k := &Kind[E]{name: name, bus: bus}
	bus.kinds = append(bus.kinds, k)
	return k
}

// Name returns the kind's name.
func (k *Kind[E]) Name() string {
	return k.name
}

// AddHandler registers fn for owner at priority and returns its ID. Lower
// priorities run first.
func (k *Kind[E]) AddHandler(owner plugin.Handle, priority int, fn func(E)) HandlerID {
	id := k.bus.nextID
	k.bus.nextID++
	e := &entry[E]{id: id, owner: owner, priority: priority, fn: fn}

	i := len(k.handlers)
	for i > 0 && k.handlers[i-1].priority > priority {
		i--
	}
	k.handlers = slices.Insert(k.handlers, i, e)
	return id
}

// RemoveHandler removes the handler with the ID. A handler removed while
// an event is being published is not called for the rest of that event.
func (k *Kind[E]) RemoveHandler(id HandlerID) bool {
	for i, e := range k.handlers {
		if e.id == id {
			e.removed = true
			k.handlers = slices.Delete(k.handlers, i, i+1)
			return true
		}
	}
	return false
}

func (k *Kind[E]) removeOwner(owner plugin.Handle) int {
	n := 0
	k.handlers = slices.DeleteFunc(k.handlers, func(e *entry[E]) bool {
		if e.owner == owner {
			e.removed = true
			n++
			return true
		}
		return false
	})
	return n
}

// Len returns the number of live handlers.
func (k *Kind[E]) Len() int {
	return len(k.handlers)
}

// Publish delivers ev to the handlers registered when the call starts.
func (k *Kind[E]) Publish(ev E) E {
	snapshot := slices.Clone(k.handlers)
	for _, e := range snapshot {
		if e.removed {
			continue
		}
		k.bus.metrics.IncHandlerInvocation(k.name)
		e.fn(ev)
		if ev.Stopped() {
			break
		}
	}
	return ev
}
