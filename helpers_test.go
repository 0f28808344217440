package ptrc_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/peterbourgon/ptrc"
	"github.com/zoobzio/clockz"
)

func AssertEqual[X comparable](t *testing.T, want, have X) {
	t.Helper()
	if want != have {
		t.Fatalf("want %v, have %v", want, have)
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("error %v", err)
	}
}

func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("want error %v, have %v", target, err)
	}
}

func ExpectEqual[X comparable](t *testing.T, want, have X) {
	t.Helper()
	if want != have {
		t.Errorf("want %v, have %v", want, have)
	}
}

// newTestSession starts a session with a Chrome sink and a fake clock. The
// session is stopped when the test completes.
func newTestSession(t *testing.T, opts ptrc.Options) (*ptrc.Session, *ptrc.ChromeSink, *clockz.FakeClock) {
	t.Helper()

	var (
		sink  = ptrc.NewChromeSink()
		clock = clockz.NewFakeClock()
		host  = ptrc.NewGoroutineHost().WithClock(clock)
	)

	s, err := ptrc.StartSession(opts.WithSink(sink).WithHost(host))
	AssertNoError(t, err)
	t.Cleanup(s.Stop)

	return s, sink, clock
}

// decodeSession flushes the session, without stopping it, and parses the
// resulting document.
func decodeSession(t *testing.T, s *ptrc.Session) *ptrc.ChromeDocument {
	t.Helper()

	data, err := s.Bytes(false)
	AssertNoError(t, err)

	doc, err := ptrc.DecodeChromeDocument(bytes.NewReader(data))
	AssertNoError(t, err)

	return doc
}

func eventsWithPhase(doc *ptrc.ChromeDocument, ph string) []ptrc.ChromeEvent {
	var res []ptrc.ChromeEvent
	for _, ev := range doc.TraceEvents {
		if ev.Ph == ph {
			res = append(res, ev)
		}
	}
	return res
}

func eventsNamed(doc *ptrc.ChromeDocument, name string) []ptrc.ChromeEvent {
	var res []ptrc.ChromeEvent
	for _, ev := range doc.TraceEvents {
		if ev.Name == name {
			res = append(res, ev)
		}
	}
	return res
}
