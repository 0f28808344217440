package ptrc

import "io"

// Sink accumulates the events and metadata of a session. A session calls
// Start when it starts and Stop when it stops; in between, AddMetadata and
// AddEvent may be called concurrently from any number of goroutines.
//
// Implementations must be safe for concurrent use, and should tolerate
// AddEvent calls after Stop, which may happen when a span that began while
// the session was running ends concurrently with Stop. Such events should be
// dropped.
type Sink interface {
	// Start should allocate fresh storage for a new session, discarding any
	// previous data.
	Start()

	// Stop should release the storage allocated by Start.
	Stop()

	// AddMetadata should store a session-scoped metadata entry. It should
	// return an error matching ErrDuplicateKey if the key already exists.
	AddMetadata(key string, value any) error

	// AddEvent should store the event.
	AddEvent(ev Event)
}

// StreamSink is a sink that can serialize its data to a stream. Sinks that
// don't implement StreamSink can't be flushed, and flush operations on them
// fail with ErrNotSupported.
type StreamSink interface {
	Sink

	// WriteStream should serialize a snapshot of the current data to w. It
	// should be safe to call while events are still being added. Errors from
	// w should be returned wrapping ErrNotWritable.
	WriteStream(w io.Writer) error
}
