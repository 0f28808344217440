// Package ptrc provides in-process performance capture: timed spans, counters
// that track a scalar value over time, and point-in-time markers. Captured
// events are collected by a [Sink] for the lifetime of a [Session], and can be
// serialized as a Chrome Trace Event document, which can be loaded into
// chrome://tracing, Perfetto, Speedscope, and similar viewers.
//
// The basic idea is to start a session, instrument code with spans and
// counters, and flush the session to some destination when done.
//
//	s := ptrc.NewSession()
//	s.Start(ptrc.DefaultOptions())
//	defer s.Stop()
//
//	sp, err := s.Begin("load", "io")
//	if err != nil {
//	    return err // pool exhausted
//	}
//	defer sp.End()
//
// Spans and counters are backed by fixed-size pools of reusable handles, one
// pool per kind, sized at session start. Acquiring a handle never allocates
// and never blocks; when every handle of a kind is in use, acquisition fails
// with [ErrPoolExhausted]. When no session is running, spans and counters are
// inert no-ops, so instrumentation can stay in place at negligible cost.
//
// Every goroutine that emits an event is given exactly one "thread_name"
// metadata event, submitted before its first real event, so viewers can label
// rows. Goroutine names can be assigned via [GoroutineHost.SetThreadName].
//
// Package ptrchttp exposes a running session over HTTP, including a live
// server-sent event stream, and cmd/ptrc is a CLI for working with it.
package ptrc
