package cleaner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kklingenberg/docker-job-dispatcher/internal/engine"
)

type fakeEngine struct {
	engine.Ops

	mu       sync.Mutex
	exited   []engine.Summary
	inspects map[string]*engine.InspectResult
	removed  []string
	removeErrs map[string]error
}

func (f *fakeEngine) GetExited(ctx context.Context, namespace string) ([]engine.Summary, error) {
	return f.exited, nil
}

func (f *fakeEngine) Inspect(ctx context.Context, name string) (*engine.InspectResult, error) {
	if r, ok := f.inspects[name]; ok {
		return r, nil
	}
	return &engine.InspectResult{Name: name}, nil
}

func (f *fakeEngine) Remove(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.removeErrs[name]; ok {
		return err
	}
	f.removed = append(f.removed, name)
	return nil
}

func pending(names ...string) []engine.Summary {
	out := make([]engine.Summary, len(names))
	for i, n := range names {
		out[i] = engine.Summary{Names: []string{"/" + n}}
	}
	return out
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTickRemovesOnlyOldEnough(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fe := &fakeEngine{
		exited: pending("old", "fresh", "exactly-at-threshold"),
		inspects: map[string]*engine.InspectResult{
			"old":                   {FinishedAt: now.Add(-2 * time.Minute).Format(time.RFC3339)},
			"fresh":                 {FinishedAt: now.Add(-10 * time.Second).Format(time.RFC3339)},
			"exactly-at-threshold":  {FinishedAt: now.Add(-1 * time.Minute).Format(time.RFC3339)},
		},
	}
	l := &Loop{Engine: fe, Namespace: "default", MaxAge: time.Minute, Logger: zap.NewNop(), now: fixedNow(now)}

	require.NoError(t, l.tick(context.Background()))
	assert.ElementsMatch(t, []string{"old"}, fe.removed)
}

func TestTickSkipsUnparseableTimestamps(t *testing.T) {
	now := time.Now()
	fe := &fakeEngine{
		exited: pending("bad"),
		inspects: map[string]*engine.InspectResult{
			"bad": {FinishedAt: "not-a-timestamp"},
		},
	}
	l := &Loop{Engine: fe, Namespace: "default", MaxAge: time.Second, Logger: zap.NewNop(), now: fixedNow(now)}

	require.NoError(t, l.tick(context.Background()))
	assert.Empty(t, fe.removed)
}

func TestTickSkipsMissingName(t *testing.T) {
	fe := &fakeEngine{exited: []engine.Summary{{}}}
	l := &Loop{Engine: fe, Namespace: "default", MaxAge: time.Second, Logger: zap.NewNop()}

	require.NoError(t, l.tick(context.Background()))
	assert.Empty(t, fe.removed)
}

func TestRunTerminatesAfterFiveConsecutiveFailures(t *testing.T) {
	fe := &fakeEngine{
		exited: pending("stuck"),
		inspects: map[string]*engine.InspectResult{
			"stuck": {FinishedAt: time.Now().Add(-time.Hour).Format(time.RFC3339)},
		},
		removeErrs: map[string]error{"stuck": errors.New("persistent failure")},
	}
	l := &Loop{
		Engine:    fe,
		Namespace: "default",
		MaxAge:    time.Second,
		Interval:  time.Millisecond,
		Logger:    zap.NewNop(),
	}

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 consecutive")
}
