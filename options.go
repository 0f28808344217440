package ptrc

import (
	"io"
	"log"
)

// Default pool sizes, i.e. the max number of concurrently active handles.
const (
	DefaultSpanPoolSize    = 50
	DefaultCounterPoolSize = 20
)

// Options configure a session. A session copies its options when it starts,
// and that copy is immutable for the lifetime of the session. To change
// options, stop the session and start it again.
//
// The With methods return modified copies and never mutate the receiver.
type Options struct {
	// StackTraces captures a stack trace for every span and marker. Stack
	// traces are useful, but comparatively expensive to compute.
	StackTraces bool

	// CallerLocation records the file and line of the caller for every span,
	// counter, and marker.
	CallerLocation bool

	// SimpleNames controls how names are derived for spans, counters, and
	// markers created without an explicit name. If true, only the function
	// name is used, e.g. "(*Server).handle". If false, the fully qualified
	// name is used, e.g. "github.com/x/y.(*Server).handle".
	SimpleNames bool

	// PoolSizes sets the max number of concurrently active handles per kind.
	// Only KindSpan and KindCounter are pooled. Missing or non-positive
	// values use the defaults.
	PoolSizes map[Kind]int

	// Sink receives captured events. If nil, each session start creates a new
	// Chrome Trace Event sink.
	Sink Sink

	// Host provides thread identity and timestamps. If nil, a default
	// goroutine host is used.
	Host Host

	// Logger receives lifecycle messages. If nil, messages are discarded.
	Logger *log.Logger
}

// DefaultOptions returns options with no stack traces, no caller locations,
// fully qualified derived names, and default pool sizes.
func DefaultOptions() Options {
	return Options{
		PoolSizes: map[Kind]int{
			KindSpan:    DefaultSpanPoolSize,
			KindCounter: DefaultCounterPoolSize,
		},
	}
}

// WithStackTraces sets StackTraces.
func (o Options) WithStackTraces(enable bool) Options {
	o = o.clone()
	o.StackTraces = enable
	return o
}

// WithCallerLocation sets CallerLocation.
func (o Options) WithCallerLocation(enable bool) Options {
	o = o.clone()
	o.CallerLocation = enable
	return o
}

// WithSimpleNames sets SimpleNames.
func (o Options) WithSimpleNames(enable bool) Options {
	o = o.clone()
	o.SimpleNames = enable
	return o
}

// WithPoolSize sets the pool size for the given kind.
func (o Options) WithPoolSize(kind Kind, size int) Options {
	o = o.clone()
	o.PoolSizes[kind] = size
	return o
}

// WithSink sets Sink.
func (o Options) WithSink(sink Sink) Options {
	o = o.clone()
	o.Sink = sink
	return o
}

// WithHost sets Host.
func (o Options) WithHost(host Host) Options {
	o = o.clone()
	o.Host = host
	return o
}

// WithLogger sets Logger.
func (o Options) WithLogger(logger *log.Logger) Options {
	o = o.clone()
	o.Logger = logger
	return o
}

// PoolSize returns the effective pool size for the kind.
func (o Options) PoolSize(kind Kind) int {
	if n, ok := o.PoolSizes[kind]; ok && n > 0 {
		return n
	}
	switch kind {
	case KindSpan:
		return DefaultSpanPoolSize
	case KindCounter:
		return DefaultCounterPoolSize
	default:
		return 0
	}
}

func (o Options) clone() Options {
	sizes := make(map[Kind]int, len(o.PoolSizes))
	for k, v := range o.PoolSizes {
		sizes[k] = v
	}
	o.PoolSizes = sizes
	return o
}

// snapshot returns the immutable copy used by a running session, with every
// default filled in.
func (o Options) snapshot() Options {
	o = o.clone()
	o.PoolSizes[KindSpan] = o.PoolSize(KindSpan)
	o.PoolSizes[KindCounter] = o.PoolSize(KindCounter)
	if o.Sink == nil {
		o.Sink = NewChromeSink()
	}
	if o.Host == nil {
		o.Host = NewGoroutineHost()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return o
}
