package ptrc

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of a captured event.
type Kind uint8

const (
	// KindCounter is a sample of a named scalar value.
	KindCounter Kind = iota

	// KindMarker is an instantaneous point-in-time event.
	KindMarker

	// KindSpan is a measured duration between a begin and end point.
	KindSpan

	// KindMeta sets metadata, e.g. a thread name, for viewers.
	KindMeta
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindMarker:
		return "marker"
	case KindSpan:
		return "span"
	case KindMeta:
		return "meta"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Phase returns the Chrome Trace Event "ph" code for the kind.
func (k Kind) Phase() string {
	switch k {
	case KindCounter:
		return "C"
	case KindMarker:
		return "R"
	case KindSpan:
		return "X"
	case KindMeta:
		return "M"
	default:
		return "?"
	}
}

//
//
//

// DefaultCategory is assigned to events created without any categories.
const DefaultCategory = "Uncategorized"

// SourceLocation is a file and line in source code.
type SourceLocation struct {
	File string
	Line int
}

// IsZero returns true if the location doesn't point anywhere.
func (loc SourceLocation) IsZero() bool {
	return loc.File == "" && loc.Line == 0
}

// String returns "file:line", or the empty string for a zero location.
func (loc SourceLocation) String() string {
	if loc.IsZero() {
		return ""
	}
	return loc.File + ":" + strconv.Itoa(loc.Line)
}

// Value is the kind-dependent payload of an event. Counters carry a number,
// meta events carry a string, and markers and spans carry nothing.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Number returns the numeric value, and true, for counter events.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindCounter
}

// Text returns the string value, and true, for meta events.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindMeta
}

//
//
//

// Event is one captured fact: a span, a counter sample, a marker, or a meta
// setter. Events are immutable once constructed, and safe for concurrent use.
//
// Timestamps are relative to the start of the session that captured them.
type Event struct {
	name       string
	categories []string
	kind       Kind
	threadID   int64
	timestamp  time.Duration
	duration   time.Duration
	value      Value
	location   SourceLocation
	stackTrace string
}

// NewSpanEvent returns a span event.
func NewSpanEvent(name string, categories []string, threadID int64, timestamp, duration time.Duration) Event {
	return Event{
		name:       name,
		categories: normalizeCategories(categories),
		kind:       KindSpan,
		threadID:   threadID,
		timestamp:  timestamp,
		duration:   duration,
		value:      Value{kind: KindSpan},
	}
}

// NewCounterEvent returns a counter sample event.
func NewCounterEvent(name string, categories []string, threadID int64, timestamp time.Duration, value float64) Event {
	return Event{
		name:       name,
		categories: normalizeCategories(categories),
		kind:       KindCounter,
		threadID:   threadID,
		timestamp:  timestamp,
		value:      Value{kind: KindCounter, num: value},
	}
}

// NewMarkerEvent returns a marker event.
func NewMarkerEvent(name string, categories []string, threadID int64, timestamp time.Duration) Event {
	return Event{
		name:       name,
		categories: normalizeCategories(categories),
		kind:       KindMarker,
		threadID:   threadID,
		timestamp:  timestamp,
		value:      Value{kind: KindMarker},
	}
}

// NewMetaEvent returns a meta event, which sets name to value for the thread.
func NewMetaEvent(name string, threadID int64, value string) Event {
	return Event{
		name:       name,
		categories: normalizeCategories(nil),
		kind:       KindMeta,
		threadID:   threadID,
		value:      Value{kind: KindMeta, str: value},
	}
}

// WithLocation returns a copy of the event with the given source location.
func (ev Event) WithLocation(loc SourceLocation) Event {
	ev.location = loc
	return ev
}

// WithStackTrace returns a copy of the event with the given stack trace.
func (ev Event) WithStackTrace(stackTrace string) Event {
	ev.stackTrace = stackTrace
	return ev
}

func (ev Event) Name() string             { return ev.name }
func (ev Event) Kind() Kind               { return ev.kind }
func (ev Event) ThreadID() int64          { return ev.threadID }
func (ev Event) Value() Value             { return ev.value }
func (ev Event) Location() SourceLocation { return ev.location }
func (ev Event) StackTrace() string       { return ev.stackTrace }

// Categories returns a copy of the event categories.
func (ev Event) Categories() []string {
	return append([]string(nil), ev.categories...)
}

// CategoryString returns the categories joined by commas.
func (ev Event) CategoryString() string {
	return strings.Join(ev.categories, ",")
}

// Timestamp returns the start of the event, relative to the session start.
func (ev Event) Timestamp() time.Duration {
	return ev.timestamp
}

// Duration returns the duration, and true, for span events.
func (ev Event) Duration() (time.Duration, bool) {
	return ev.duration, ev.kind == KindSpan
}

// defaultCategories is shared by every event without categories, and must not
// be modified.
var defaultCategories = []string{DefaultCategory}

func normalizeCategories(categories []string) []string {
	if len(categories) <= 0 {
		return defaultCategories
	}
	var res []string
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			res = append(res, c)
		}
	}
	if len(res) <= 0 {
		return defaultCategories
	}
	return res
}
