package main

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/peterbourgon/ptrc"
)

func TestRunWorkload(t *testing.T) {
	t.Parallel()

	var (
		host = ptrc.NewGoroutineHost()
		sink = ptrc.NewChromeSink()
		opts = ptrc.DefaultOptions().WithHost(host).WithSink(sink).WithSimpleNames(true)
	)

	session, err := ptrc.StartSession(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Stop()

	if err := runWorkload(context.Background(), session, host, 3, 5); err != nil {
		t.Fatal(err)
	}

	var (
		spans      int
		checkpoint int
		done       int
		samples    int
		threads    []string
	)
	for _, ev := range sink.Events() {
		switch ev.Kind() {
		case ptrc.KindSpan:
			if ev.Name() != "step" {
				t.Errorf("span name: want step, have %s", ev.Name())
			}
			spans++
		case ptrc.KindMarker:
			switch ev.Name() {
			case "checkpoint":
				checkpoint++
			case "workload done":
				done++
			}
		case ptrc.KindCounter:
			samples++
		case ptrc.KindMeta:
			if name, _ := ev.Value().Text(); len(name) > 7 && name[:7] == "worker-" {
				threads = append(threads, name)
			}
		}
	}

	if want, have := 15, spans; want != have {
		t.Errorf("spans: want %d, have %d", want, have)
	}
	if want, have := 3, checkpoint; want != have {
		t.Errorf("checkpoints: want %d, have %d", want, have)
	}
	if want, have := 1, done; want != have {
		t.Errorf("done markers: want %d, have %d", want, have)
	}
	if want, have := 16, samples; want != have {
		t.Errorf("counter samples: want %d, have %d", want, have)
	}

	sort.Strings(threads)
	if want, have := []string{"worker-0", "worker-1", "worker-2"}, threads; !cmp.Equal(want, have) {
		t.Errorf("thread names: %s", cmp.Diff(want, have))
	}
}

func TestRunWorkloadIdle(t *testing.T) {
	t.Parallel()

	session := ptrc.NewSession()
	if err := runWorkload(context.Background(), session, ptrc.NewGoroutineHost(), 2, 3); err != nil {
		t.Fatal(err)
	}
}

func TestDemoStdout(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	args := []string{"demo", "--log", "none", "-w", "2", "-n", "3"}
	if err := exec(context.Background(), nil, &stdout, &stderr, args); err != nil {
		t.Fatalf("%v\n%s", err, stderr.String())
	}

	doc, err := ptrc.DecodeChromeDocument(&stdout)
	if err != nil {
		t.Fatal(err)
	}

	var spans int
	for _, cev := range doc.TraceEvents {
		if cev.Ph == "X" {
			spans++
		}
	}
	if want, have := 6, spans; want != have {
		t.Errorf("spans: want %d, have %d", want, have)
	}
	if want, have := "demo", doc.OtherData["command"]; want != have {
		t.Errorf("command metadata: want %v, have %v", want, have)
	}
}
