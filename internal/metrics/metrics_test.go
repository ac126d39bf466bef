package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kklingenberg/docker-job-dispatcher/internal/engine"
)

type fakeEngine struct {
	engine.Ops

	active  int
	pending []engine.Summary
	events  chan engine.Event
	errc    chan error
}

func (f *fakeEngine) CountActive(ctx context.Context, namespace string) (int, error) {
	return f.active, nil
}

func (f *fakeEngine) GetPending(ctx context.Context, namespace string) ([]engine.Summary, error) {
	return f.pending, nil
}

func (f *fakeEngine) Events(ctx context.Context, namespace string) (<-chan engine.Event, <-chan error) {
	return f.events, f.errc
}

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestPumpSeedsCountersFromEngineState(t *testing.T) {
	reg := NewRegistry()
	fe := &fakeEngine{
		active:  2,
		pending: []engine.Summary{{}, {}},
		events:  make(chan engine.Event),
		errc:    make(chan error),
	}
	p := &Pump{Registry: reg, Engine: fe, Namespace: "default", Logger: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	body := scrape(t, reg)
	assert.True(t, strings.Contains(body, `jobs{action="create",namespace="default",status=""} 4`))
	assert.True(t, strings.Contains(body, `jobs{action="start",namespace="default",status=""} 2`))
}

func TestPumpIncrementsOnEvents(t *testing.T) {
	reg := NewRegistry()
	events := make(chan engine.Event, 1)
	fe := &fakeEngine{events: events, errc: make(chan error)}
	p := &Pump{Registry: reg, Engine: fe, Namespace: "default", Logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	events <- engine.Event{Action: "die", ExitCode: "1", HasCode: true}
	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	body := scrape(t, reg)
	assert.Contains(t, body, `jobs{action="die",namespace="default",status="1"} 1`)
}

func TestPumpReturnsErrorOnStreamFailure(t *testing.T) {
	reg := NewRegistry()
	errc := make(chan error, 1)
	fe := &fakeEngine{events: make(chan engine.Event), errc: errc}
	p := &Pump{Registry: reg, Engine: fe, Namespace: "default", Logger: zap.NewNop()}

	errc <- errors.New("stream broke")
	err := p.Run(context.Background())
	assert.Error(t, err)
}
