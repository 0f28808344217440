package ptrc

import (
	"github.com/peterbourgon/ptrc/internal/ptrcdebug"
)

// handlePool is a fixed-capacity free list of reusable handles. All handles
// are allocated when the pool is created. Acquire never blocks and never
// allocates: it either takes a free handle or fails immediately.
//
// The free list is a buffered channel, so acquire and release are safe for
// concurrent use, and no two callers can receive the same handle.
type handlePool[T any] struct {
	kind     Kind
	capacity int
	free     chan *T
	counters ptrcdebug.PoolCounters
}

func newHandlePool[T any](kind Kind, capacity int) *handlePool[T] {
	p := &handlePool[T]{
		kind:     kind,
		capacity: capacity,
		free:     make(chan *T, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.free <- new(T)
	}
	return p
}

func (p *handlePool[T]) acquire() (*T, error) {
	select {
	case h := <-p.free:
		p.counters.Acquire.Add(1)
		return h, nil
	default:
		p.counters.Exhausted.Add(1)
		return nil, &PoolExhaustedError{Kind: p.kind, Capacity: p.capacity}
	}
}

func (p *handlePool[T]) release(h *T) {
	select {
	case p.free <- h:
		p.counters.Release.Add(1)
	default:
		p.counters.Stale.Add(1) // more releases than acquires, shouldn't happen
	}
}

func (p *handlePool[T]) active() int {
	return p.capacity - len(p.free)
}

// PoolStats describes the state of a handle pool.
type PoolStats struct {
	Capacity int                `json:"capacity"`
	Active   int                `json:"active"`
	Counters ptrcdebug.Snapshot `json:"counters"`
}

func (p *handlePool[T]) stats() PoolStats {
	return PoolStats{
		Capacity: p.capacity,
		Active:   p.active(),
		Counters: p.counters.Snapshot(),
	}
}
