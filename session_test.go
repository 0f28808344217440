package ptrc_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterbourgon/ptrc"
)

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	s := ptrc.NewSession()
	AssertEqual(t, false, s.Running())
	AssertEqual(t, "", s.ID())

	s.Stop() // no-op
	s.Stop()

	AssertNoError(t, s.Start(ptrc.DefaultOptions()))
	AssertEqual(t, true, s.Running())
	AssertEqual(t, 26, len(s.ID()))

	opts, ok := s.Options()
	AssertEqual(t, true, ok)
	AssertEqual(t, ptrc.DefaultSpanPoolSize, opts.PoolSize(ptrc.KindSpan))
	if _, ok := opts.Sink.(*ptrc.ChromeSink); !ok {
		t.Errorf("default sink: want *ptrc.ChromeSink, have %T", opts.Sink)
	}

	s.Stop()
	AssertEqual(t, false, s.Running())
	AssertEqual(t, "", s.ID())

	_, ok = s.Options()
	AssertEqual(t, false, ok)
}

func TestSessionDefaultMetadata(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())
	doc := decodeSession(t, s)

	AssertEqual(t, ptrc.Version, doc.OtherData["perfTracingVersion"].(string))
	AssertEqual(t, s.ID(), doc.OtherData["sessionID"].(string))
	for _, key := range []string{"goos", "goarch", "goVersion", "pid", "hostname", "numCPU"} {
		if _, ok := doc.OtherData[key]; !ok {
			t.Errorf("%s: missing from metadata", key)
		}
	}
}

func TestSessionAddMetadata(t *testing.T) {
	t.Parallel()

	s := ptrc.NewSession()
	AssertErrorIs(t, s.AddMetadata("k", "v"), ptrc.ErrInvalidState)

	AssertNoError(t, s.Start(ptrc.DefaultOptions()))
	defer s.Stop()

	AssertNoError(t, s.AddMetadata("k", "v"))
	AssertNoError(t, s.AddMetadata("n", 123))
	AssertErrorIs(t, s.AddMetadata("k", "other"), ptrc.ErrDuplicateKey)
	AssertErrorIs(t, s.AddMetadata("perfTracingVersion", "2.0.0"), ptrc.ErrDuplicateKey)

	doc := decodeSession(t, s)
	AssertEqual(t, "v", doc.OtherData["k"].(string))
	AssertEqual(t, 123.0, doc.OtherData["n"].(float64))
	AssertEqual(t, ptrc.Version, doc.OtherData["perfTracingVersion"].(string))
}

func TestSessionRestartClearsMetadata(t *testing.T) {
	t.Parallel()

	s := ptrc.NewSession()
	AssertNoError(t, s.Start(ptrc.DefaultOptions()))
	AssertNoError(t, s.AddMetadata("k", "v"))
	s.Stop()

	AssertNoError(t, s.Start(ptrc.DefaultOptions()))
	defer s.Stop()
	AssertNoError(t, s.AddMetadata("k", "v"))
}

func TestSessionFlushErrors(t *testing.T) {
	t.Parallel()

	t.Run("idle", func(t *testing.T) {
		s := ptrc.NewSession()
		AssertErrorIs(t, s.Flush(&bytes.Buffer{}, false), ptrc.ErrInvalidState)
		_, err := s.Bytes(true)
		AssertErrorIs(t, err, ptrc.ErrInvalidState)
	})

	t.Run("not supported", func(t *testing.T) {
		s, err := ptrc.StartSession(ptrc.DefaultOptions().WithSink(&passiveSink{}))
		AssertNoError(t, err)
		defer s.Stop()
		AssertErrorIs(t, s.Flush(&bytes.Buffer{}, true), ptrc.ErrNotSupported)
		AssertEqual(t, true, s.Running())
	})

	t.Run("not writable", func(t *testing.T) {
		s, _, _ := newTestSession(t, ptrc.DefaultOptions())
		AssertErrorIs(t, s.Flush(failingWriter{}, true), ptrc.ErrNotWritable)
		AssertErrorIs(t, s.Flush(nil, true), ptrc.ErrNotWritable)
		AssertEqual(t, true, s.Running())
	})
}

func TestSessionFlushStop(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())

	sp, err := s.Begin("work")
	AssertNoError(t, err)
	sp.End()

	var buf bytes.Buffer
	AssertNoError(t, s.Flush(&buf, true))
	AssertEqual(t, false, s.Running())

	doc, err := ptrc.DecodeChromeDocument(&buf)
	AssertNoError(t, err)
	AssertEqual(t, 1, len(eventsNamed(doc, "work")))
}

func TestSessionFlushLoadScenario(t *testing.T) {
	t.Parallel()

	s, _, clock := newTestSession(t, ptrc.DefaultOptions())

	sp, err := s.Begin("load")
	AssertNoError(t, err)
	clock.Advance(25 * time.Millisecond)
	sp.End()

	data, err := s.Bytes(true)
	AssertNoError(t, err)
	AssertEqual(t, false, s.Running())

	doc, err := ptrc.DecodeChromeDocument(bytes.NewReader(data))
	AssertNoError(t, err)
	AssertEqual(t, 2, len(doc.TraceEvents))

	meta, span := doc.TraceEvents[0], doc.TraceEvents[1]
	AssertEqual(t, "M", meta.Ph)
	AssertEqual(t, "thread_name", meta.Name)
	AssertEqual(t, span.Tid, meta.Tid)
	AssertEqual(t, "X", span.Ph)
	AssertEqual(t, "load", span.Name)
	AssertEqual(t, ptrc.DefaultCategory, span.Cat)
	AssertEqual(t, 0.0, span.Ts)
	AssertEqual(t, float64(25*time.Millisecond), *span.Dur)
}

func TestSessionStartOverwrites(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, ptrc.DefaultOptions())
	firstID := s.ID()

	sp, err := s.Begin("first")
	AssertNoError(t, err)
	sp.End()

	held, err := s.Begin("held")
	AssertNoError(t, err)

	sink := ptrc.NewChromeSink()
	AssertNoError(t, s.Start(ptrc.DefaultOptions().WithSink(sink)))
	if s.ID() == firstID {
		t.Fatalf("session ID didn't change")
	}

	held.End() // issued by the previous session

	AssertEqual(t, 0, sink.Len())
	doc := decodeSession(t, s)
	AssertEqual(t, 0, len(doc.TraceEvents))
}

func TestSessionStats(t *testing.T) {
	t.Parallel()

	AssertEqual(t, false, ptrc.NewSession().Stats().Running)

	s, _, _ := newTestSession(t, ptrc.DefaultOptions().WithPoolSize(ptrc.KindSpan, 3))

	sp, err := s.Begin("a")
	AssertNoError(t, err)

	stats := s.Stats()
	AssertEqual(t, true, stats.Running)
	AssertEqual(t, s.ID(), stats.ID)
	AssertEqual(t, 3, stats.Spans.Capacity)
	AssertEqual(t, 1, stats.Spans.Active)
	AssertEqual(t, ptrc.DefaultCounterPoolSize, stats.Counters.Capacity)

	sp.End()

	stats = s.Stats()
	AssertEqual(t, 0, stats.Spans.Active)
	AssertEqual(t, uint64(1), stats.Spans.Counters.Release)
	AssertEqual(t, uint64(2), stats.Events) // thread name + span
}

func TestSessionDefaultMetadataFailure(t *testing.T) {
	t.Parallel()

	s := ptrc.NewSession()
	err := s.Start(ptrc.DefaultOptions().WithSink(&passiveSink{failMetadata: true}))
	if err == nil {
		t.Fatalf("want error, have none")
	}
	AssertEqual(t, false, s.Running())
}

func TestSessionThreadNamedFirstWithSharedThreadID(t *testing.T) {
	t.Parallel()

	var (
		sink = &slowMetaSink{delay: 20 * time.Millisecond}
		host = sharedThreadHost{ptrc.NewGoroutineHost()}
	)
	s, err := ptrc.StartSession(ptrc.DefaultOptions().WithSink(sink).WithHost(host))
	AssertNoError(t, err)
	defer s.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Mark("concurrent"); err != nil {
				t.Errorf("Mark: %v", err)
			}
		}()
	}
	wg.Wait()

	kinds := sink.kinds()
	AssertEqual(t, 5, len(kinds))
	AssertEqual(t, ptrc.KindMeta, kinds[0])
	for i, k := range kinds[1:] {
		if k != ptrc.KindMarker {
			t.Errorf("event %d: want marker, have %s", i+1, k)
		}
	}
}

//
//
//

// passiveSink is a sink that can't be serialized.
type passiveSink struct {
	failMetadata bool
	events       int
}

func (s *passiveSink) Start() {}
func (s *passiveSink) Stop()  {}

func (s *passiveSink) AddMetadata(key string, value any) error {
	if s.failMetadata {
		return errors.New("metadata rejected")
	}
	return nil
}

func (s *passiveSink) AddEvent(ev ptrc.Event) { s.events++ }

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

// sharedThreadHost reports the same thread ID for every goroutine.
type sharedThreadHost struct{ *ptrc.GoroutineHost }

func (sharedThreadHost) ThreadID() int64 { return 7 }

// slowMetaSink records event kinds in order, and is slow to accept meta
// events.
type slowMetaSink struct {
	delay time.Duration

	mtx    sync.Mutex
	events []ptrc.Kind
}

func (s *slowMetaSink) Start() {}
func (s *slowMetaSink) Stop()  {}

func (s *slowMetaSink) AddMetadata(key string, value any) error { return nil }

func (s *slowMetaSink) AddEvent(ev ptrc.Event) {
	if ev.Kind() == ptrc.KindMeta {
		time.Sleep(s.delay)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.events = append(s.events, ev.Kind())
}

func (s *slowMetaSink) kinds() []ptrc.Kind {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]ptrc.Kind(nil), s.events...)
}
