// Package cleaner implements the poll-based reaping loop: it removes
// exited containers whose finish time is older than a configured age
// threshold.
package cleaner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kklingenberg/docker-job-dispatcher/internal/engine"
	"github.com/kklingenberg/docker-job-dispatcher/internal/loop"
)

// Loop periodically removes exited containers past MaxAge.
type Loop struct {
	Engine    engine.Ops
	Namespace string
	MaxAge    time.Duration
	Interval  time.Duration
	Logger    *zap.Logger

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// Run blocks until ctx is canceled or five consecutive ticks fail.
func (l *Loop) Run(ctx context.Context) error {
	return loop.Run(ctx, "cleaner", l.Interval, l.Logger, l.tick)
}

func (l *Loop) nowFunc() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

// tick removes every exited container whose finished_at strictly
// precedes now-MaxAge. Containers whose name, state, or finished_at
// can't be parsed are silently skipped this tick. It returns an error if
// listing exited containers, inspecting a candidate, or removing a
// qualifying container failed.
func (l *Loop) tick(ctx context.Context) error {
	threshold := l.nowFunc().Add(-l.MaxAge)

	exited, err := l.Engine.GetExited(ctx, l.Namespace)
	if err != nil {
		return fmt.Errorf("fetching exited jobs: %w", err)
	}

	type candidate struct {
		name       string
		finishedAt time.Time
	}

	inspected := make([]candidate, 0, len(exited))
	var inspectG errgroup.Group
	results := make([]*candidate, len(exited))
	for i, summary := range exited {
		i := i
		name, ok := summary.Name()
		if !ok {
			continue
		}
		inspectG.Go(func() error {
			detail, err := l.Engine.Inspect(ctx, name)
			if err != nil {
				return fmt.Errorf("inspecting %q: %w", name, err)
			}
			if detail.FinishedAt == "" {
				return nil
			}
			finishedAt, err := time.Parse(time.RFC3339, detail.FinishedAt)
			if err != nil {
				return nil
			}
			results[i] = &candidate{name: name, finishedAt: finishedAt}
			return nil
		})
	}
	if err := inspectG.Wait(); err != nil {
		return err
	}
	for _, c := range results {
		if c == nil {
			continue
		}
		inspected = append(inspected, *c)
	}

	var removeG errgroup.Group
	for _, c := range inspected {
		if !c.finishedAt.Before(threshold) {
			continue
		}
		name := c.name
		removeG.Go(func() error {
			l.Logger.Info("cleaning job", zap.String("name", name))
			if err := l.Engine.Remove(ctx, name); err != nil {
				return fmt.Errorf("removing %q: %w", name, err)
			}
			return nil
		})
	}
	return removeG.Wait()
}
