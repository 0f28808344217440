package main

import (
	"context"
	"encoding/json"

	"github.com/peterbourgon/ptrc"
)

type startConfig struct {
	*rootConfig
}

func (cfg *startConfig) Exec(ctx context.Context, args []string) error {
	stats, err := cfg.newClient().Start(ctx, cfg.startRequest())
	if err != nil {
		return err
	}
	cfg.info.Printf("session %s started", stats.ID)
	return cfg.writeStats(stats)
}

type stopConfig struct {
	*rootConfig
}

func (cfg *stopConfig) Exec(ctx context.Context, args []string) error {
	stats, err := cfg.newClient().Stop(ctx)
	if err != nil {
		return err
	}
	if stats.Running {
		cfg.info.Printf("session %s stopped after %d event(s)", stats.ID, stats.Events)
	} else {
		cfg.info.Printf("no session was running")
	}
	return cfg.writeStats(stats)
}

func (cfg *rootConfig) writeStats(stats ptrc.Stats) error {
	enc := json.NewEncoder(cfg.stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(stats)
}
