package ptrc

import (
	"sync/atomic"
	"time"
)

// Span measures the duration of an operation. Spans are acquired by
// [Session.Begin] and completed by [Span.End], which returns the underlying
// pooled handle for reuse.
//
// A Span is a small value referencing a pooled handle and the generation of
// that handle at the time it was issued. Once a span ends, every copy of it
// is inert, even if the handle has since been issued to another caller. The
// zero value is an inert span.
type Span struct {
	h    *spanHandle
	gen  uint64
	name string
}

// spanHandle is the pooled, reusable part of a span. Its fields are owned by
// the holder of the current generation.
type spanHandle struct {
	gen        atomic.Uint64 // odd while issued
	session    *Session
	state      *sessionState
	name       string
	categories []string
	location   SourceLocation
	stackTrace string
	start      time.Time
}

// Begin starts a span with the given name and categories. If name is empty,
// it's derived from the calling function, per Options.SimpleNames.
//
// If no session is running, Begin returns an inert span that records nothing.
// If every span handle is in use, Begin returns an error matching
// ErrPoolExhausted. Callers should defer End immediately after a successful
// Begin, so the span is completed on every return path.
func (s *Session) Begin(name string, categories ...string) (Span, error) {
	st := s.state.Load()
	if st == nil {
		return Span{}, nil
	}

	h, err := st.spans.acquire()
	if err != nil {
		st.opts.Logger.Printf("session %s: begin %q: %v", st.id, name, err)
		return Span{}, err
	}

	name, loc, trace := st.describe(1, name)

	h.session = s
	h.state = st
	h.name = name
	h.categories = normalizeCategories(categories)
	h.location = loc
	h.stackTrace = trace
	h.start = st.host.Now()

	return Span{h: h, gen: h.gen.Add(1), name: name}, nil
}

// Name returns the name of the span.
func (sp Span) Name() string {
	return sp.name
}

// End completes the span. If the session that issued the span is still
// running, a span event is submitted. The handle is returned to its pool.
// End is safe to call on inert spans, and calls after the first, on any copy
// of the span, are no-ops.
func (sp Span) End() {
	if sp.h == nil {
		return
	}

	h := sp.h
	if !h.gen.CompareAndSwap(sp.gen, sp.gen+1) {
		return // already ended
	}

	st := h.state
	end := st.host.Now()

	if h.session.current(st) {
		ev := NewSpanEvent(h.name, h.categories, st.host.ThreadID(), st.since(h.start), nonNegative(end.Sub(h.start)))
		ev.location = h.location
		ev.stackTrace = h.stackTrace
		st.submit(ev)
	}

	h.stackTrace = ""
	st.spans.release(h)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
