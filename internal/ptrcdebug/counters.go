// Package ptrcdebug tracks handle pool operations.
package ptrcdebug

import "sync/atomic"

// PoolCounters track operations on a single handle pool.
type PoolCounters struct {
	Acquire   atomic.Uint64 // successful acquisitions
	Release   atomic.Uint64 // handles returned to the pool
	Exhausted atomic.Uint64 // failed acquisitions
	Stale     atomic.Uint64 // releases refused because the handle was already free
}

// Snapshot is a point-in-time copy of pool counters.
type Snapshot struct {
	Acquire   uint64 `json:"acquire"`
	Release   uint64 `json:"release"`
	Exhausted uint64 `json:"exhausted"`
	Stale     uint64 `json:"stale"`
}

// Snapshot returns the current values of the counters.
func (pc *PoolCounters) Snapshot() Snapshot {
	return Snapshot{
		Acquire:   pc.Acquire.Load(),
		Release:   pc.Release.Load(),
		Exhausted: pc.Exhausted.Load(),
		Stale:     pc.Stale.Load(),
	}
}

// ExhaustedPercent returns the percent (0..100) of acquisition attempts that
// failed because the pool was exhausted.
func (s Snapshot) ExhaustedPercent() float64 {
	attempts := s.Acquire + s.Exhausted
	if attempts <= 0 {
		return 0.0
	}
	return 100 * float64(s.Exhausted) / float64(attempts)
}
