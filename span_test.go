package ptrc_test

import (
	"sync"
	"testing"
	"time"

	"github.com/peterbourgon/ptrc"
)

func TestSpanCount(t *testing.T) {
	t.Parallel()

	s, sink, _ := newTestSession(t, ptrc.DefaultOptions())

	var (
		workers = 10
		perWork = 25
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWork; j++ {
				sp, err := s.Begin("op", "test")
				if err != nil {
					t.Errorf("Begin: %v", err)
					return
				}
				sp.End()
			}
		}()
	}
	wg.Wait()

	var spans int
	for _, ev := range sink.Events() {
		if ev.Kind() != ptrc.KindSpan {
			continue
		}
		spans++
		dur, ok := ev.Duration()
		AssertEqual(t, true, ok)
		if dur < 0 {
			t.Errorf("%s: negative duration %s", ev.Name(), dur)
		}
	}
	AssertEqual(t, workers*perWork, spans)
}

func TestSpanDuration(t *testing.T) {
	t.Parallel()

	s, sink, clock := newTestSession(t, ptrc.DefaultOptions())

	clock.Advance(time.Second)

	outer, err := s.Begin("outer")
	AssertNoError(t, err)
	clock.Advance(10 * time.Millisecond)

	inner, err := s.Begin("inner")
	AssertNoError(t, err)
	clock.Advance(5 * time.Millisecond)
	inner.End()

	clock.Advance(time.Millisecond)
	outer.End()

	want := map[string][2]time.Duration{
		"inner": {1010 * time.Millisecond, 5 * time.Millisecond},
		"outer": {1000 * time.Millisecond, 16 * time.Millisecond},
	}
	for _, ev := range sink.Events() {
		if ev.Kind() != ptrc.KindSpan {
			continue
		}
		dur, _ := ev.Duration()
		ExpectEqual(t, want[ev.Name()][0], ev.Timestamp())
		ExpectEqual(t, want[ev.Name()][1], dur)
	}
}

func TestSpanInertWhenIdle(t *testing.T) {
	t.Parallel()

	s := ptrc.NewSession()

	sp, err := s.Begin("idle")
	AssertNoError(t, err)
	AssertEqual(t, "", sp.Name())
	sp.End()
	sp.End()

	var zero ptrc.Span
	zero.End()
	AssertEqual(t, "", zero.Name())
}

func TestSpanEndAfterStop(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())

	sp, err := s.Begin("orphan")
	AssertNoError(t, err)

	s.Stop()
	sink := ptrc.NewChromeSink()
	AssertNoError(t, s.Start(ptrc.DefaultOptions().WithSink(sink)))

	sp.End()
	AssertEqual(t, 0, sink.Len())
}

func TestSpanDoubleEnd(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())

	sp, err := s.Begin("twice")
	AssertNoError(t, err)
	sp.End()
	sp.End()

	doc := decodeSession(t, s)
	AssertEqual(t, 1, len(eventsNamed(doc, "twice")))

	stats := s.Stats().Spans
	AssertEqual(t, 0, stats.Active)
	AssertEqual(t, uint64(1), stats.Counters.Release)
	AssertEqual(t, uint64(0), stats.Counters.Stale)
}

func TestSpanCategories(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())

	testcases := []struct {
		name string
		cats []string
		want string
	}{
		{"none", nil, ptrc.DefaultCategory},
		{"one", []string{"io"}, "io"},
		{"two", []string{"io", "disk"}, "io,disk"},
		{"blank", []string{" ", ""}, ptrc.DefaultCategory},
		{"trimmed", []string{" net ", "", "tls"}, "net,tls"},
	}

	for _, tc := range testcases {
		sp, err := s.Begin(tc.name, tc.cats...)
		AssertNoError(t, err)
		sp.End()
	}

	doc := decodeSession(t, s)
	for _, tc := range testcases {
		evs := eventsNamed(doc, tc.name)
		AssertEqual(t, 1, len(evs))
		ExpectEqual(t, tc.want, evs[0].Cat)
	}
}

func TestSpanHandleReuse(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions().WithPoolSize(ptrc.KindSpan, 1))

	for i := 0; i < 100; i++ {
		sp, err := s.Begin("reuse")
		AssertNoError(t, err)
		sp.End()
	}

	doc := decodeSession(t, s)
	AssertEqual(t, 100, len(eventsNamed(doc, "reuse")))
}

func TestSpanStaleEndAfterReuse(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions().WithPoolSize(ptrc.KindSpan, 1))

	a, err := s.Begin("a")
	AssertNoError(t, err)
	a.End()

	b, err := s.Begin("b")
	AssertNoError(t, err)

	a.End() // must not touch b, which reuses the handle

	AssertEqual(t, 0, len(eventsNamed(decodeSession(t, s), "b")))
	AssertEqual(t, 1, s.Stats().Spans.Active)

	_, err = s.Begin("c")
	AssertErrorIs(t, err, ptrc.ErrPoolExhausted)

	b.End()
	AssertEqual(t, 1, len(eventsNamed(decodeSession(t, s), "b")))
	AssertEqual(t, 0, s.Stats().Spans.Active)
}

func TestSpanCopiesShareEnd(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())

	sp, err := s.Begin("copied")
	AssertNoError(t, err)
	cp := sp
	sp.End()
	cp.End()

	AssertEqual(t, 1, len(eventsNamed(decodeSession(t, s), "copied")))
	AssertEqual(t, uint64(1), s.Stats().Spans.Counters.Release)
}
