// Package metrics exports editor counters and gauges for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/core/event"
	coresys "github.com/l1jgo/workbench/internal/core/system"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var modes = []string{"edit", "play", "paused"}

// Metrics owns a private registry so tests and multiple editors never
// collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	transitions *prometheus.CounterVec
	history     *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	reloads     prometheus.Counter
	entities    prometheus.Gauge
	simTime     prometheus.Gauge
	mode        *prometheus.GaugeVec
	tick        prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workbench",
			Name:      "mode_transitions_total",
			Help:      "Completed mode transitions.",
		}, []string{"from", "to"}),
		history: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workbench",
			Name:      "history_operations_total",
			Help:      "History operations by kind (appended, merged, collapsed, undo, redo).",
		}, []string{"op"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workbench",
			Name:      "restore_conflicts_total",
			Help:      "Restores that could not reach every entity.",
		}, []string{"cause"}),
		reloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: "workbench",
			Name:      "script_reloads_total",
			Help:      "Successful script reloads.",
		}),
		entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "workbench",
			Name:      "entities",
			Help:      "Live entities in the world.",
		}),
		simTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "workbench",
			Name:      "simulation_elapsed_seconds",
			Help:      "Virtual time elapsed since Play started.",
		}),
		mode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "workbench",
			Name:      "mode",
			Help:      "1 for the active editor mode, 0 otherwise.",
		}, []string{"mode"}),
		tick: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "workbench",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one editor tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

// Subscribe feeds the counters from editor events.
func (m *Metrics) Subscribe(bus *event.Bus) {
	event.Subscribe(bus, func(e event.ModeChanged) {
		m.transitions.WithLabelValues(e.From, e.To).Inc()
	})
	event.Subscribe(bus, func(e event.HistoryPushed) {
		m.history.WithLabelValues(e.Outcome).Inc()
	})
	event.Subscribe(bus, func(event.HistoryUndone) {
		m.history.WithLabelValues("undo").Inc()
	})
	event.Subscribe(bus, func(event.HistoryRedone) {
		m.history.WithLabelValues("redo").Inc()
	})
	event.Subscribe(bus, func(e event.RestoreConflict) {
		m.conflicts.WithLabelValues(e.Cause).Inc()
	})
	event.Subscribe(bus, func(event.ScriptsReloaded) {
		m.reloads.Inc()
	})
}

// ObserveTick records the duration of one editor tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tick.Observe(d.Seconds())
}

// StateFunc reports the current mode name and simulation time.
type StateFunc func() (mode string, elapsed time.Duration)

// GaugeSystem refreshes the gauges once per tick. Phase 3 (PostUpdate).
type GaugeSystem struct {
	m     *Metrics
	state StateFunc
}

func (m *Metrics) System(state StateFunc) *GaugeSystem {
	return &GaugeSystem{m: m, state: state}
}

func (s *GaugeSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *GaugeSystem) Update(w *ecs.World, _ time.Duration) {
	s.m.entities.Set(float64(w.EntityCount()))
	cur, elapsed := s.state()
	s.m.simTime.Set(elapsed.Seconds())
	for _, name := range modes {
		v := 0.0
		if name == cur {
			v = 1
		}
		s.m.mode.WithLabelValues(name).Set(v)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("metrics listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
