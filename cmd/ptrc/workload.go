package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/peterbourgon/ptrc"
	"golang.org/x/sync/errgroup"
)

// runWorkload runs workers concurrently, each performing the given number of
// iterations of instrumented work. It's safe to call when the session is
// idle, in which case nothing is recorded.
func runWorkload(ctx context.Context, session *ptrc.Session, host *ptrc.GoroutineHost, workers, iterations int) error {
	processed, err := session.NewCounter("processed", 0, "demo")
	if err != nil {
		return fmt.Errorf("create counter: %w", err)
	}
	defer processed.Release()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			host.SetThreadName(fmt.Sprintf("worker-%d", i))
			defer host.SetThreadName("")

			for j := 0; j < iterations; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := step(session, j); err != nil {
					return err
				}
				processed.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	session.Mark("workload done", "demo") // ErrInvalidState when idle is fine
	return err
}

// step is a single unit of work. Its span name is derived from the function.
// When every span handle is in use, the work still happens unmeasured.
func step(session *ptrc.Session, iteration int) error {
	sp, err := session.Begin("", "demo")
	switch {
	case err == nil:
		defer sp.End()
	case !errors.Is(err, ptrc.ErrPoolExhausted):
		return err
	}

	if iteration%10 == 0 {
		session.Mark("checkpoint", "demo")
	}

	time.Sleep(time.Duration(rand.IntN(500)) * time.Microsecond)
	return nil
}
