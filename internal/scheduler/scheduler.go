// Package scheduler implements the poll-based admission loop: it starts
// pending (created-but-not-started) containers up to a concurrency
// quota, in FIFO order by creation time.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kklingenberg/docker-job-dispatcher/internal/engine"
	"github.com/kklingenberg/docker-job-dispatcher/internal/loop"
)

// Loop periodically admits pending containers into the running state.
type Loop struct {
	Engine        engine.Ops
	Namespace     string
	MaxConcurrent int
	Interval      time.Duration
	Logger        *zap.Logger
}

// Run blocks until ctx is canceled or five consecutive ticks fail.
func (l *Loop) Run(ctx context.Context) error {
	return loop.Run(ctx, "scheduler", l.Interval, l.Logger, l.tick)
}

// tick admits min(MaxConcurrent-active, len(pending)) containers, oldest
// first, starting them concurrently. It returns an error if any start
// attempt failed, or if listing active/pending containers failed.
func (l *Loop) tick(ctx context.Context) error {
	active, err := l.Engine.CountActive(ctx, l.Namespace)
	if err != nil {
		return fmt.Errorf("counting active jobs: %w", err)
	}
	if active >= l.MaxConcurrent {
		return nil
	}

	pending, err := l.Engine.GetPending(ctx, l.Namespace)
	if err != nil {
		return fmt.Errorf("fetching pending jobs: %w", err)
	}

	room := l.MaxConcurrent - active
	if room > len(pending) {
		room = len(pending)
	}
	toStart := pending[:room]

	// Plain errgroup.Group (no WithContext): one start failing must not
	// cancel its siblings — the spec only requires that the tick as a
	// whole be reported as failed.
	var g errgroup.Group
	for _, summary := range toStart {
		name, ok := summary.Name()
		if !ok {
			continue
		}
		g.Go(func() error {
			l.Logger.Info("scheduling job", zap.String("name", name))
			if err := l.Engine.Start(ctx, name); err != nil {
				return fmt.Errorf("starting %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
