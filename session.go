package ptrc

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Version is recorded in the metadata of every session.
const Version = "1.0.0"

// Session is the capture lifecycle gate. A session is either idle or running.
// While idle, spans and counters are inert, and markers, metadata, and flush
// operations fail with ErrInvalidState. While running, captured events are
// routed to the sink configured in the session options.
//
// Instrumentation methods are safe for concurrent use. Start and Stop are
// serialized with respect to each other, but are expected to be called from
// a single controlling goroutine: instrumentation calls that race with a
// lifecycle transition may observe either the old or the new state.
type Session struct {
	mtx   sync.Mutex // serializes Start and Stop
	state atomic.Pointer[sessionState]
}

// sessionState is the immutable configuration and mutable shared state of a
// single running session. Handles reference the state that issued them, so
// a handle that outlives its session can detect that and do nothing.
type sessionState struct {
	id       ulid.ULID
	opts     Options
	sink     Sink
	host     Host
	start    time.Time
	spans    *handlePool[spanHandle]
	counters *handlePool[counterHandle]
	named    sync.Map // thread ID -> *sync.Once
	events   atomic.Uint64
}

var sessionIDEntropy = ulid.DefaultEntropy()

// NewSession returns a new, idle session.
func NewSession() *Session {
	return &Session{}
}

// StartSession is a convenience function that returns a new session started
// with the given options.
func StartSession(opts Options) (*Session, error) {
	s := NewSession()
	if err := s.Start(opts); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts a new session with a snapshot of the given options. Every
// handle pool is re-created at its configured size, so handles issued by any
// previous session become inert. If a session is already running, its
// events are discarded without being flushed.
func (s *Session) Start(opts Options) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	opts = opts.snapshot()

	if prev := s.state.Swap(nil); prev != nil {
		prev.opts.Logger.Printf("session %s: overwritten, discarding %d event(s)", prev.id, prev.events.Load())
		prev.sink.Stop()
	}

	now := opts.Host.Now()
	st := &sessionState{
		id:       ulid.MustNew(ulid.Timestamp(now), sessionIDEntropy),
		opts:     opts,
		sink:     opts.Sink,
		host:     opts.Host,
		start:    now,
		spans:    newHandlePool[spanHandle](KindSpan, opts.PoolSize(KindSpan)),
		counters: newHandlePool[counterHandle](KindCounter, opts.PoolSize(KindCounter)),
	}

	st.sink.Start()

	metadata := map[string]any{
		"perfTracingVersion": Version,
		"sessionID":          st.id.String(),
	}
	for k, v := range st.host.Metadata() {
		if _, ok := metadata[k]; !ok {
			metadata[k] = v
		}
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := st.sink.AddMetadata(k, metadata[k]); err != nil {
			st.sink.Stop()
			return fmt.Errorf("add default metadata: %w", err)
		}
	}

	s.state.Store(st)

	opts.Logger.Printf("session %s: started (span pool %d, counter pool %d)", st.id, st.spans.capacity, st.counters.capacity)

	return nil
}

// Stop stops the running session, if any, and releases the sink's storage.
// Captured data is not serialized: flush before stopping to keep it. Calling
// Stop on an idle session is a no-op.
func (s *Session) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	st := s.state.Swap(nil)
	if st == nil {
		return
	}

	st.sink.Stop()

	st.opts.Logger.Printf("session %s: stopped after %d event(s)", st.id, st.events.Load())
}

// Running returns true if a session is running.
func (s *Session) Running() bool {
	return s.state.Load() != nil
}

// ID returns the ID of the running session, or the empty string if idle.
func (s *Session) ID() string {
	if st := s.state.Load(); st != nil {
		return st.id.String()
	}
	return ""
}

// Options returns a copy of the options of the running session, and true,
// or zero options and false if idle.
func (s *Session) Options() (Options, bool) {
	if st := s.state.Load(); st != nil {
		return st.opts.clone(), true
	}
	return Options{}, false
}

// AddMetadata adds a session-scoped metadata entry. It fails with
// ErrInvalidState if no session is running, and ErrDuplicateKey if the key
// already exists.
func (s *Session) AddMetadata(key string, value any) error {
	st := s.state.Load()
	if st == nil {
		return fmt.Errorf("add metadata %q: %w", key, ErrInvalidState)
	}
	if err := st.sink.AddMetadata(key, value); err != nil {
		return fmt.Errorf("add metadata %q: %w", key, err)
	}
	return nil
}

// Stats describes a session.
type Stats struct {
	Running  bool      `json:"running"`
	ID       string    `json:"id,omitempty"`
	Started  time.Time `json:"started,omitempty"`
	Events   uint64    `json:"events"`
	Spans    PoolStats `json:"spans"`
	Counters PoolStats `json:"counters"`
}

// Stats returns statistics for the running session, or zero stats if idle.
func (s *Session) Stats() Stats {
	st := s.state.Load()
	if st == nil {
		return Stats{}
	}
	return Stats{
		Running:  true,
		ID:       st.id.String(),
		Started:  st.start,
		Events:   st.events.Load(),
		Spans:    st.spans.stats(),
		Counters: st.counters.stats(),
	}
}

//
//
//

// current returns true if st is the state of the running session.
func (s *Session) current(st *sessionState) bool {
	return st != nil && s.state.Load() == st
}

// since returns the time elapsed between the session start and t.
func (st *sessionState) since(t time.Time) time.Duration {
	return t.Sub(st.start)
}

// submit routes an event to the sink. The first event from each thread is
// preceded by exactly one thread naming event. Callers that share a thread ID
// wait until the naming event has reached the sink.
func (st *sessionState) submit(ev Event) {
	tid := ev.threadID
	once, ok := st.named.Load(tid)
	if !ok {
		once, _ = st.named.LoadOrStore(tid, new(sync.Once))
	}
	once.(*sync.Once).Do(func() {
		st.sink.AddEvent(NewMetaEvent("thread_name", tid, threadName(st.host, tid)))
		st.events.Add(1)
	})
	st.sink.AddEvent(ev)
	st.events.Add(1)
}

// describe returns the name, location, and stack trace for an event created
// by the caller skip frames above the caller of describe.
func (st *sessionState) describe(skip int, name string) (string, SourceLocation, string) {
	var loc SourceLocation
	if name == "" || st.opts.CallerLocation {
		site := callSites.caller(skip + 1)
		if name == "" {
			name = site.name(st.opts.SimpleNames)
		}
		if st.opts.CallerLocation {
			loc = site.location
		}
	}

	var trace string
	if st.opts.StackTraces {
		trace = stackTrace()
	}

	return name, loc, trace
}
