package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/ptrc"
	"github.com/peterbourgon/ptrc/internal/ptrcutil"
	"github.com/peterbourgon/ptrc/ptrchttp"
)

type streamConfig struct {
	*rootConfig

	categories    []string
	phases        []string
	output        string
	sendBuf       int
	recvBuf       int
	statsInterval time.Duration
	retryInterval time.Duration

	events chan ptrc.ChromeEvent
}

func (cfg *streamConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'c', LongName: "category" /*       */, Value: ffval.NewUniqueList(&cfg.categories) /*                      */, Usage: "only stream events in this category (repeatable)", Placeholder: "CAT"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'p', LongName: "phase" /*          */, Value: ffval.NewUniqueList(&cfg.phases) /*                          */, Usage: "only stream events with this phase, e.g. X, C, R (repeatable)", Placeholder: "PH"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'o', LongName: "output" /*         */, Value: ffval.NewEnum(&cfg.output, "ndjson", "prettyjson") /*        */, Usage: "output format: ndjson, prettyjson"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "micros" /*         */, Value: ffval.NewValue(&cfg.micros) /*                               */, Usage: "receive times in microseconds rather than nanoseconds", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "send-buffer" /*    */, Value: ffval.NewValueDefault(&cfg.sendBuf, 100) /*                  */, Usage: "remote send buffer size"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "recv-buffer" /*    */, Value: ffval.NewValueDefault(&cfg.recvBuf, 100) /*                  */, Usage: "local receive buffer size"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "stats-interval" /* */, Value: ffval.NewValueDefault(&cfg.statsInterval, 10*time.Second) /* */, Usage: "stats reporting interval"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "retry-interval" /* */, Value: ffval.NewValueDefault(&cfg.retryInterval, 1*time.Second) /*  */, Usage: "connection retry interval"})
}

func (cfg *streamConfig) Exec(ctx context.Context, args []string) error {
	cfg.events = make(chan ptrc.ChromeEvent, cfg.recvBuf)

	uri := strings.TrimSuffix(cfg.uri, "/") + "/stream"
	filter := ptrchttp.StreamFilter{Categories: cfg.categories, Phases: cfg.phases}

	{
		cfg.info.Printf("streaming: %s", uri)
		cfg.debug.Printf("categories: %v", filter.Categories)
		cfg.debug.Printf("phases: %v", filter.Phases)
		cfg.debug.Printf("send buffer: %d", cfg.sendBuf)
		cfg.debug.Printf("recv buffer: %d", cfg.recvBuf)
		cfg.debug.Printf("stats interval: %s", cfg.statsInterval)
		cfg.debug.Printf("retry interval: %s", cfg.retryInterval)
	}

	var g run.Group

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			cfg.runStream(ctx, uri, filter)
			return ctx.Err()
		}, func(error) {
			cancel()
		})
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return cfg.writeEvents(ctx)
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}

	return g.Run()
}

func (cfg *streamConfig) runStream(ctx context.Context, uri string, filter ptrchttp.StreamFilter) {
	var (
		lastDataTime atomic.Value
		initCount    int
	)

	// Called for every received server-sent event.
	onRead := func(ctx context.Context, eventType string, eventData []byte) {
		lastDataTime.Store(time.Now())

		switch eventType {
		case "init":
			if initCount == 0 {
				cfg.debug.Printf("stream connected")
			} else {
				cfg.debug.Printf("stream reconnected")
			}
			initCount++

		case "stats":
			var stats ptrchttp.StreamStats
			if err := json.Unmarshal(eventData, &stats); err != nil {
				cfg.debug.Printf("stats error: %v", err)
			} else {
				cfg.debug.Printf("stats: %s", stats)
			}
		}
	}

	// Reports when it's been too long without any data.
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)

		ticker := time.NewTicker(cfg.statsInterval)
		defer ticker.Stop()

		for {
			select {
			case ts := <-ticker.C:
				last, ok := lastDataTime.Load().(time.Time)
				delta := ts.Sub(last)
				switch {
				case !ok:
					cfg.debug.Printf("no data")
				case delta > 2*cfg.statsInterval:
					cfg.debug.Printf("last data %s ago", ptrcutil.HumanizeDuration(delta))
				}

			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() {
		<-reporterDone
	}()

	sc := &ptrchttp.StreamClient{
		URI:           uri,
		Filter:        filter,
		SendBuffer:    cfg.sendBuf,
		Microseconds:  cfg.micros,
		OnRead:        onRead,
		RetryInterval: cfg.retryInterval,
	}

	for ctx.Err() == nil {
		subctx, cancel := context.WithCancel(ctx)
		errc := make(chan error, 1)
		go func() { errc <- sc.Stream(subctx, cfg.events) }() // returns only on terminal errors

		select {
		case <-subctx.Done():
			cancel()
			<-errc
			return

		case err := <-errc:
			cancel()
			if err == nil {
				return
			}
			cfg.debug.Printf("stream error, will retry (%v)", err)
			contextSleep(ctx, cfg.retryInterval) // ctx, not subctx
		}
	}
}

func (cfg *streamConfig) writeEvents(ctx context.Context) error {
	enc := json.NewEncoder(cfg.stdout)
	if cfg.output == "prettyjson" {
		enc.SetIndent("", "    ")
	}

	var count uint64
	for {
		select {
		case cev := <-cfg.events:
			count++
			if err := enc.Encode(cev); err != nil {
				return err
			}
		case <-ctx.Done():
			cfg.debug.Printf("emitted event count %d", count)
			return ctx.Err()
		}
	}
}
