package ptrc

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/peterbourgon/ptrc/internal/ptrcringbuf"
)

// ChromeSink is the default sink. It collects events and metadata in memory,
// and serializes them as a Chrome Trace Event JSON document.
//
// The document has two top-level fields: traceEvents, an array of events in
// no particular order, and otherData, an object containing the metadata.
// Timestamps and durations are in nanoseconds by default.
//
// By default the sink retains every event. With an event limit, only the most
// recent events are retained, which bounds memory for long sessions. Thread
// naming events are always retained.
type ChromeSink struct {
	mtx      sync.Mutex
	running  bool
	events   []Event
	recent   *ptrcringbuf.Ring[Event] // only with an event limit
	dropped  uint64
	metadata map[string]any
	micros   bool
	limit    int
}

var _ StreamSink = (*ChromeSink)(nil)

// ChromeOption configures a Chrome sink.
type ChromeOption func(*ChromeSink)

// WithMicroseconds writes ts and dur values in microseconds instead of
// nanoseconds, which is what most trace viewers expect by default.
func WithMicroseconds() ChromeOption {
	return func(s *ChromeSink) { s.micros = true }
}

// WithEventLimit retains only the n most recent non-metadata events. Values
// less than 1 mean no limit.
func WithEventLimit(n int) ChromeOption {
	return func(s *ChromeSink) { s.limit = n }
}

// NewChromeSink returns a new, stopped Chrome sink.
func NewChromeSink(opts ...ChromeOption) *ChromeSink {
	s := &ChromeSink{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start implements Sink.
func (s *ChromeSink) Start() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.running = true
	s.events = make([]Event, 0, 1024)
	s.recent = nil
	s.dropped = 0
	s.metadata = map[string]any{}
	if s.limit > 0 {
		s.recent = ptrcringbuf.New[Event](s.limit)
	}
}

// Stop implements Sink.
func (s *ChromeSink) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.running = false
	s.events = nil
	s.recent = nil
	s.metadata = nil
}

// AddMetadata implements Sink.
func (s *ChromeSink) AddMetadata(key string, value any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.running {
		return ErrInvalidState
	}

	if _, ok := s.metadata[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}

	s.metadata[key] = value
	return nil
}

// AddEvent implements Sink.
func (s *ChromeSink) AddEvent(ev Event) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.running {
		return // dropped
	}

	if s.recent != nil && ev.kind != KindMeta {
		if _, ok := s.recent.Add(ev); ok {
			s.dropped++
		}
		return
	}

	s.events = append(s.events, ev)
}

// Len returns the number of retained events.
func (s *ChromeSink) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	n := len(s.events)
	if s.recent != nil {
		n += s.recent.Len()
	}
	return n
}

// Dropped returns the number of events discarded due to the event limit.
func (s *ChromeSink) Dropped() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.dropped
}

// Events returns a copy of the retained events.
func (s *ChromeSink) Events() []Event {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.collect()
}

// collect must be called with s.mtx held.
func (s *ChromeSink) collect() []Event {
	events := append([]Event(nil), s.events...)
	if s.recent != nil {
		events = s.recent.AppendTo(events)
	}
	return events
}

// WriteStream implements StreamSink. It serializes a snapshot of the events
// collected so far, so it's safe to call while events are still arriving.
func (s *ChromeSink) WriteStream(w io.Writer) error {
	if w == nil {
		return fmt.Errorf("%w: nil writer", ErrNotWritable)
	}

	doc, err := s.snapshot()
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode trace document: %w", err) // unencodable metadata value
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	}

	return nil
}

func (s *ChromeSink) snapshot() (*ChromeDocument, error) {
	s.mtx.Lock()
	var (
		events   = s.collect()
		metadata = make(map[string]any, len(s.metadata))
		running  = s.running
		micros   = s.micros
	)
	for k, v := range s.metadata {
		metadata[k] = v
	}
	s.mtx.Unlock()

	if !running {
		return nil, ErrInvalidState
	}

	doc := &ChromeDocument{
		TraceEvents: make([]ChromeEvent, len(events)),
		OtherData:   metadata,
	}
	for i := range events {
		doc.TraceEvents[i] = ChromeEventFrom(events[i], micros)
	}
	return doc, nil
}

//
//
//

// ChromeDocument is a Chrome Trace Event JSON document.
type ChromeDocument struct {
	TraceEvents []ChromeEvent  `json:"traceEvents"`
	OtherData   map[string]any `json:"otherData"`
}

// ChromeEvent is the wire representation of a single event.
type ChromeEvent struct {
	Name string         `json:"name"`
	Cat  string         `json:"cat"`
	Ph   string         `json:"ph"`
	Pid  int            `json:"pid"`
	Tid  int64          `json:"tid"`
	Loc  string         `json:"loc,omitempty"`
	Ts   float64        `json:"ts"`
	Dur  *float64       `json:"dur,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// chromeProcessID is the pid of every event: a trace describes one process.
const chromeProcessID = 1

// ChromeEventFrom projects an event to its wire representation. Times are in
// nanoseconds, or microseconds if micros is true.
func ChromeEventFrom(ev Event, micros bool) ChromeEvent {
	unit := 1.0
	if micros {
		unit = 1e3
	}

	cev := ChromeEvent{
		Name: ev.name,
		Cat:  ev.CategoryString(),
		Ph:   ev.kind.Phase(),
		Pid:  chromeProcessID,
		Tid:  ev.threadID,
		Loc:  ev.location.String(),
		Ts:   float64(ev.timestamp) / unit,
	}

	switch ev.kind {
	case KindSpan:
		dur := float64(ev.duration) / unit
		cev.Dur = &dur
		cev.Args = locationArgs(ev)
	case KindMarker:
		cev.Args = locationArgs(ev)
	case KindCounter:
		cev.Args = map[string]any{ev.name: finiteOrNil(ev.value.num)}
	case KindMeta:
		cev.Args = map[string]any{"name": ev.value.str}
	}

	return cev
}

func locationArgs(ev Event) map[string]any {
	if ev.location.IsZero() && ev.stackTrace == "" {
		return nil
	}
	args := map[string]any{}
	if !ev.location.IsZero() {
		args["location"] = ev.location.String()
	}
	if ev.stackTrace != "" {
		args["stackTrace"] = ev.stackTrace
	}
	return args
}

// finiteOrNil returns nil for values that can't be represented in JSON.
func finiteOrNil(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// DecodeChromeDocument parses a document written by a Chrome sink.
func DecodeChromeDocument(r io.Reader) (*ChromeDocument, error) {
	var doc ChromeDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode trace document: %w", err)
	}
	return &doc, nil
}
