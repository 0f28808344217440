// Package ptrcpubsub fans out published values to subscriber channels.
package ptrcpubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadySubscribed is returned when a channel is subscribed twice.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrNotSubscribed is returned for operations on an unknown channel.
	ErrNotSubscribed = errors.New("not subscribed")
)

// Broker publishes values to subscribers. Publishing never blocks: a value is
// dropped for every subscriber whose channel is full.
type Broker[T any] struct {
	mtx         sync.Mutex
	subscribers map[chan<- T]*subscriber[T]
	active      atomic.Bool
}

type subscriber[T any] struct {
	allow func(T) bool
	ch    chan<- T
	stats Stats
}

// NewBroker returns an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subscribers: map[chan<- T]*subscriber[T]{},
	}
}

// Active returns true if the broker has at least one subscriber.
func (b *Broker[T]) Active() bool {
	return b.active.Load()
}

// Publish sends val to every subscriber that allows it.
func (b *Broker[T]) Publish(val T) {
	if !b.active.Load() {
		return
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	for _, sub := range b.subscribers {
		if sub.allow != nil && !sub.allow(val) {
			sub.stats.Skips++
			continue
		}
		select {
		case sub.ch <- val:
			sub.stats.Sends++
		default:
			sub.stats.Drops++
		}
	}
}

// Subscribe sends published values that pass allow to ch, until the context
// is canceled. A nil allow func accepts every value. Subscribe blocks, and
// returns the final stats for the subscription along with the context error.
func (b *Broker[T]) Subscribe(ctx context.Context, allow func(T) bool, ch chan<- T) (Stats, error) {
	if err := func() error {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		if _, ok := b.subscribers[ch]; ok {
			return ErrAlreadySubscribed
		}

		b.subscribers[ch] = &subscriber[T]{allow: allow, ch: ch}
		b.active.Store(true)
		return nil
	}(); err != nil {
		return Stats{}, err
	}

	<-ctx.Done()

	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return Stats{}, fmt.Errorf("unsubscribe: %w", ErrNotSubscribed)
	}
	delete(b.subscribers, ch)
	b.active.Store(len(b.subscribers) > 0)

	return sub.stats, ctx.Err()
}

// Stats returns the current stats for the subscription of ch.
func (b *Broker[T]) Stats(ch chan<- T) (Stats, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return Stats{}, ErrNotSubscribed
	}

	return sub.stats, nil
}

// Stats count the outcomes of publishing to a single subscriber.
type Stats struct {
	Skips uint64 `json:"skips"`
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"`
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("skips=%d sends=%d drops=%d", s.Skips, s.Sends, s.Drops)
}
