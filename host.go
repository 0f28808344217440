package ptrc

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/petermattis/goid"
	"github.com/zoobzio/clockz"
)

// Host provides thread identity and timestamps to a session. Implementations
// must be safe for concurrent use. All methods refer to the calling thread.
type Host interface {
	// ThreadID should return an identifier for the calling thread, which is
	// stable for the lifetime of the thread.
	ThreadID() int64

	// ThreadName should return a name for the calling thread, or the empty
	// string if the thread has no name.
	ThreadName() string

	// IsMainThread should return true if the calling thread is the main
	// thread of the program.
	IsMainThread() bool

	// Now should return the current time, preferably with a monotonic clock
	// reading. Elapsed durations are computed with time.Time.Sub.
	Now() time.Time

	// Metadata should return process and runtime identity fields, which are
	// recorded as session metadata when a session starts.
	Metadata() map[string]any
}

// GoroutineHost is the default host. Threads are goroutines, identified by
// their runtime goroutine ID, and the main goroutine is goroutine 1.
type GoroutineHost struct {
	clock clockz.Clock
	names sync.Map // goroutine ID -> name
}

var _ Host = (*GoroutineHost)(nil)

// mainGoroutineID is the ID of the goroutine that runs main.main.
const mainGoroutineID = 1

// NewGoroutineHost returns a goroutine host using the real clock.
func NewGoroutineHost() *GoroutineHost {
	return &GoroutineHost{clock: clockz.RealClock}
}

// WithClock returns a new goroutine host using the given clock. Thread names
// are not copied.
func (*GoroutineHost) WithClock(clock clockz.Clock) *GoroutineHost {
	return &GoroutineHost{clock: clock}
}

// SetThreadName names the calling goroutine. Names are used for thread naming
// events, which are emitted once per goroutine per session, so a name should
// be set before the goroutine emits its first event.
func (h *GoroutineHost) SetThreadName(name string) {
	id := goid.Get()
	if name == "" {
		h.names.Delete(id)
		return
	}
	h.names.Store(id, name)
}

// ThreadID implements Host.
func (h *GoroutineHost) ThreadID() int64 {
	return goid.Get()
}

// ThreadName implements Host.
func (h *GoroutineHost) ThreadName() string {
	if name, ok := h.names.Load(goid.Get()); ok {
		return name.(string)
	}
	return ""
}

// IsMainThread implements Host.
func (h *GoroutineHost) IsMainThread() bool {
	return goid.Get() == mainGoroutineID
}

// Now implements Host.
func (h *GoroutineHost) Now() time.Time {
	return h.clock.Now()
}

// Metadata implements Host.
func (h *GoroutineHost) Metadata() map[string]any {
	hostname, _ := os.Hostname()
	return map[string]any{
		"goos":      runtime.GOOS,
		"goarch":    runtime.GOARCH,
		"goVersion": runtime.Version(),
		"pid":       os.Getpid(),
		"hostname":  hostname,
		"numCPU":    runtime.NumCPU(),
	}
}

// threadName returns the name used in a thread naming event.
func threadName(h Host, tid int64) string {
	if h.IsMainThread() {
		return "MainThread"
	}
	if name := h.ThreadName(); name != "" {
		return name
	}
	return "UnknownThread-" + strconv.FormatInt(tid, 10)
}
