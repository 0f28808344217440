package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/ptrc"
)

type demoConfig struct {
	*rootConfig

	workers    int
	iterations int
	out        string
	clipboard  bool
}

func (cfg *demoConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'w', LongName: "workers" /*    */, Value: ffval.NewValueDefault(&cfg.workers, 8) /*     */, Usage: "concurrent workers"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'n', LongName: "iterations" /* */, Value: ffval.NewValueDefault(&cfg.iterations, 50) /* */, Usage: "iterations per worker"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'o', LongName: "out" /*        */, Value: ffval.NewValueDefault(&cfg.out, "-") /*       */, Usage: "output file, or - for stdout", Placeholder: "PATH"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "clipboard" /*  */, Value: ffval.NewValue(&cfg.clipboard) /*             */, Usage: "copy the session to the clipboard instead", NoDefault: true})
}

func (cfg *demoConfig) Exec(ctx context.Context, args []string) error {
	host := ptrc.NewGoroutineHost()

	session, err := ptrc.StartSession(cfg.sessionOptions(host))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Stop()

	if err := session.AddMetadata("command", "demo"); err != nil {
		return err
	}

	cfg.info.Printf("session %s: %d worker(s), %d iteration(s) each", session.ID(), cfg.workers, cfg.iterations)

	if err := runWorkload(ctx, session, host, cfg.workers, cfg.iterations); err != nil {
		return fmt.Errorf("workload: %w", err)
	}

	stats := session.Stats()
	cfg.info.Printf("captured %d event(s), %d span handle(s) exhausted", stats.Events, stats.Spans.Counters.Exhausted)

	switch {
	case cfg.clipboard:
		if err := session.CopyText(clipboardDestination{}, true); err != nil {
			return err
		}
		cfg.info.Printf("copied to clipboard")

	case cfg.out == "" || cfg.out == "-":
		if err := session.Flush(cfg.stdout, true); err != nil {
			return err
		}

	default:
		dir, name := filepath.Split(filepath.Clean(cfg.out))
		if dir == "" {
			dir = "."
		}
		if err := session.SaveFile(ptrc.DirFS(dir), name, true); err != nil {
			return err
		}
		cfg.info.Printf("wrote %s", cfg.out)
	}

	return nil
}

// clipboardDestination copies text to the system clipboard.
type clipboardDestination struct{}

func (clipboardDestination) SetText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard unsupported on this platform")
	}
	return clipboard.WriteAll(text)
}
