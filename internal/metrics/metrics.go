// Package metrics registers and serves the "jobs" counter family, and
// pumps it from the engine's event stream.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kklingenberg/docker-job-dispatcher/internal/engine"
)

// Registry owns the process-wide "jobs" counter family. Construct it
// with NewRegistry; the underlying prometheus.Registry is safe for
// concurrent Inc/Gather without an additional mutex.
type Registry struct {
	reg  *prometheus.Registry
	jobs *prometheus.CounterVec
}

// NewRegistry creates a Registry and registers the "jobs" counter family
// into it. Each call builds an independent registry; the supervisor
// builds one per process and shares it.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}
	r.jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs",
		Help: "Number of jobs observed, by lifecycle action and status.",
	}, []string{"namespace", "action", "status"})
	r.reg.MustRegister(r.jobs)
	return r
}

// Handler returns an http.Handler that exposes the registry in
// OpenMetrics text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) inc(namespace, action, status string, n int) {
	if n <= 0 {
		return
	}
	r.jobs.WithLabelValues(namespace, action, status).Add(float64(n))
}

// Pump seeds counters from current engine state, then consumes the
// engine's event stream until ctx is canceled or the stream errors.
// Events observed in the gap between the seed step and stream
// subscription are acceptably lost; this is a documented limitation,
// not a bug.
type Pump struct {
	Registry  *Registry
	Engine    engine.Ops
	Namespace string
	Logger    *zap.Logger
}

// Run seeds counters and then pumps events until ctx is done or the
// engine's event stream returns an error.
func (p *Pump) Run(ctx context.Context) error {
	active, err := p.Engine.CountActive(ctx, p.Namespace)
	if err != nil {
		return fmt.Errorf("metrics: seeding active count: %w", err)
	}
	pending, err := p.Engine.GetPending(ctx, p.Namespace)
	if err != nil {
		return fmt.Errorf("metrics: seeding pending count: %w", err)
	}

	p.Registry.inc(p.Namespace, "create", "", active+len(pending))
	p.Registry.inc(p.Namespace, "start", "", active)

	events, errc := p.Engine.Events(ctx, p.Namespace)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errc:
			if ok && err != nil {
				return fmt.Errorf("metrics: event stream: %w", err)
			}
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("metrics: event stream: %w", err)
					}
				default:
				}
				return nil
			}
			status := ""
			if ev.HasCode {
				status = ev.ExitCode
			}
			p.Registry.inc(p.Namespace, ev.Action, status, 1)
		}
	}
}
