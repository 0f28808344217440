package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/ptrc"
	"github.com/peterbourgon/ptrc/ptrchttp"
	"github.com/peterbourgon/unixtransport/unixproxy"
)

type serveConfig struct {
	*rootConfig

	listenAddr string
	start      bool
	workers    int
	interval   time.Duration
}

func (cfg *serveConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "listen-addr" /* */, Value: ffval.NewValueDefault(&cfg.listenAddr, "localhost:8001") /* */, Usage: "HTTP listen address, host:port or unix:///path"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "start" /*       */, Value: ffval.NewValue(&cfg.start) /*                             */, Usage: "start a session immediately", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 'w', LongName: "workers" /*     */, Value: ffval.NewValueDefault(&cfg.workers, 4) /*                 */, Usage: "background workers per workload run"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "interval" /*    */, Value: ffval.NewValueDefault(&cfg.interval, time.Second) /*      */, Usage: "background workload interval (0 disables)"})
}

func (cfg *serveConfig) Exec(ctx context.Context, args []string) error {
	var (
		host    = ptrc.NewGoroutineHost()
		session = ptrc.NewSession()
		stream  = ptrchttp.NewEventStream()
	)
	defer session.Stop()

	control := &ptrchttp.Server{
		Session: session,
		Options: cfg.sessionOptions(host),
		Stream:  stream,
		Logger:  cfg.debug,
	}

	if cfg.start {
		opts := cfg.sessionOptions(host)
		opts.Sink = stream.Sink(opts.Sink)
		if err := session.Start(opts); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		cfg.info.Printf("session %s started", session.ID())
	}

	mux := http.NewServeMux()
	mux.Handle("/debug/ptrc/", http.StripPrefix("/debug/ptrc", control))
	mux.Handle("/work", ptrchttp.Middleware(session, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		if n <= 0 {
			n = 10
		}
		if err := runWorkload(r.Context(), session, host, 1, n); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "ran %d iteration(s)\n", n)
	})))

	ln, err := unixproxy.ListenURI(ctx, cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	cfg.info.Printf("listening on %s", cfg.listenAddr)
	cfg.info.Printf("control API at /debug/ptrc/, workload at /work")

	var g run.Group

	{
		server := &http.Server{Handler: mux}
		g.Add(func() error {
			return server.Serve(ln)
		}, func(error) {
			server.Close()
		})
	}

	if cfg.interval > 0 {
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			ticker := time.NewTicker(cfg.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := runWorkload(ctx, session, host, cfg.workers, 10); err != nil && ctx.Err() == nil {
						cfg.debug.Printf("workload: %v", err)
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}

	return g.Run()
}
