package main

import (
	"io"
	"log"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/ptrc"
	"github.com/peterbourgon/ptrc/ptrchttp"
)

type rootConfig struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logLevel string

	// capture
	stackTraces     bool
	callerLocation  bool
	simpleNames     bool
	spanPoolSize    int
	counterPoolSize int
	micros          bool
	eventLimit      int

	// remote
	uri string

	info, debug *log.Logger
}

func (cfg *rootConfig) registerBaseFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'l', LongName: "log", Value: ffval.NewEnum(&cfg.logLevel, "info", "i", "debug", "d", "none", "n"), Usage: "log level: i/info, d/debug, n/none", Placeholder: "LEVEL"})
}

func (cfg *rootConfig) registerCaptureFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "stack-traces" /*    */, Value: ffval.NewValue(&cfg.stackTraces) /*                                        */, Usage: "capture a stack trace for every span and marker", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "caller-location" /* */, Value: ffval.NewValue(&cfg.callerLocation) /*                                     */, Usage: "record the caller file and line of every event", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "simple-names" /*    */, Value: ffval.NewValue(&cfg.simpleNames) /*                                        */, Usage: "derive short names, without package paths", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "span-pool" /*       */, Value: ffval.NewValueDefault(&cfg.spanPoolSize, ptrc.DefaultSpanPoolSize) /*       */, Usage: "max concurrently active spans"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "counter-pool" /*    */, Value: ffval.NewValueDefault(&cfg.counterPoolSize, ptrc.DefaultCounterPoolSize) /* */, Usage: "max concurrently active counters"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "micros" /*          */, Value: ffval.NewValue(&cfg.micros) /*                                             */, Usage: "write times in microseconds rather than nanoseconds", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "event-limit" /*     */, Value: ffval.NewValue(&cfg.eventLimit) /*                                         */, Usage: "retain only the most recent N events (0 means no limit)", Placeholder: "N"})
}

func (cfg *rootConfig) registerRemoteFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'u', LongName: "uri", Value: ffval.NewValueDefault(&cfg.uri, "localhost:8001/debug/ptrc"), Usage: "control server URI, http:// or http+unix://", Placeholder: "URI"})
}

// startRequest returns the capture flags as a start request.
func (cfg *rootConfig) startRequest() ptrchttp.StartRequest {
	return ptrchttp.StartRequest{
		StackTraces:     setOnly(cfg.stackTraces),
		CallerLocation:  setOnly(cfg.callerLocation),
		SimpleNames:     setOnly(cfg.simpleNames),
		SpanPoolSize:    cfg.spanPoolSize,
		CounterPoolSize: cfg.counterPoolSize,
		Microseconds:    cfg.micros,
		EventLimit:      cfg.eventLimit,
	}
}

// sessionOptions returns the capture flags as session options, with a Chrome
// sink and the given host.
func (cfg *rootConfig) sessionOptions(host ptrc.Host) ptrc.Options {
	req := cfg.startRequest()

	var sinkOpts []ptrc.ChromeOption
	if req.Microseconds {
		sinkOpts = append(sinkOpts, ptrc.WithMicroseconds())
	}
	if req.EventLimit > 0 {
		sinkOpts = append(sinkOpts, ptrc.WithEventLimit(req.EventLimit))
	}

	return req.Options(ptrc.DefaultOptions()).
		WithSink(ptrc.NewChromeSink(sinkOpts...)).
		WithHost(host).
		WithLogger(cfg.debug)
}

func (cfg *rootConfig) newClient() *ptrchttp.Client {
	return ptrchttp.NewClient(ptrchttp.NewHTTPClient(), cfg.uri)
}

// setOnly returns nil for false, so that unset flags don't override the
// options of a remote server.
func setOnly(b bool) *bool {
	if !b {
		return nil
	}
	return &b
}
