package ptrc

import (
	"math"
	"sync"
)

// Counter tracks a named scalar value over time. Counters are acquired by
// [Session.NewCounter] and released by [Counter.Release], which returns the
// underlying pooled handle for reuse. A counter emits an event when it's
// created, and then again every time its value changes.
//
// Like [Span], a Counter is a small value referencing a pooled handle and
// the generation it was issued with. Once released, every copy of it is
// inert. The zero value is an inert counter.
type Counter struct {
	h    *counterHandle
	gen  uint64
	name string
}

// counterHandle is the pooled, reusable part of a counter.
type counterHandle struct {
	mtx        sync.Mutex
	gen        uint64 // odd while issued
	session    *Session
	state      *sessionState
	name       string
	categories []string
	location   SourceLocation
	last       float64
}

// NewCounter creates a counter with the given name, initial value, and
// categories, and immediately emits a baseline sample. If name is empty, it's
// derived from the calling function, per Options.SimpleNames.
//
// If no session is running, NewCounter returns an inert counter that records
// nothing. If every counter handle is in use, NewCounter returns an error
// matching ErrPoolExhausted.
func (s *Session) NewCounter(name string, initial float64, categories ...string) (Counter, error) {
	st := s.state.Load()
	if st == nil {
		return Counter{}, nil
	}

	h, err := st.counters.acquire()
	if err != nil {
		st.opts.Logger.Printf("session %s: new counter %q: %v", st.id, name, err)
		return Counter{}, err
	}

	name, loc, _ := st.describe(1, name)

	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.gen++
	h.session = s
	h.state = st
	h.name = name
	h.categories = normalizeCategories(categories)
	h.location = loc
	h.last = initial
	h.emit()

	return Counter{h: h, gen: h.gen, name: name}, nil
}

// Name returns the name of the counter.
func (c Counter) Name() string {
	return c.name
}

// Value returns the most recently recorded value, or zero if the counter is
// inert or released.
func (c Counter) Value() float64 {
	h, ok := c.lock()
	if !ok {
		return 0
	}
	defer h.mtx.Unlock()
	return h.last
}

// Update records a new value. Nothing is emitted if the value is unchanged,
// if the counter has been released, or if the session that issued the counter
// is no longer running.
func (c Counter) Update(value float64) {
	h, ok := c.lock()
	if !ok {
		return
	}
	defer h.mtx.Unlock()

	if !h.session.current(h.state) || sameValue(h.last, value) {
		return
	}

	h.last = value
	h.emit()
}

// Add is a convenience for Update(Value() + delta).
func (c Counter) Add(delta float64) {
	if delta == 0 {
		return
	}

	h, ok := c.lock()
	if !ok {
		return
	}
	defer h.mtx.Unlock()

	if !h.session.current(h.state) {
		return
	}

	h.last += delta
	h.emit()
}

// Release returns the handle to its pool. No event is emitted. Release is
// safe to call on inert counters, and calls after the first, on any copy of
// the counter, are no-ops.
func (c Counter) Release() {
	h, ok := c.lock()
	if !ok {
		return
	}
	h.gen++
	st := h.state
	h.mtx.Unlock()

	st.counters.release(h)
}

// lock returns the handle with its mutex held, and true, if c still owns it.
func (c Counter) lock() (*counterHandle, bool) {
	if c.h == nil {
		return nil, false
	}
	c.h.mtx.Lock()
	if c.h.gen != c.gen {
		c.h.mtx.Unlock()
		return nil, false
	}
	return c.h, true
}

// emit must be called with h.mtx held.
func (h *counterHandle) emit() {
	st := h.state
	ev := NewCounterEvent(h.name, h.categories, st.host.ThreadID(), st.since(st.host.Now()), h.last)
	ev.location = h.location
	st.submit(ev)
}

// sameValue treats NaN as equal to NaN, so repeated NaN updates are deduped.
func sameValue(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
