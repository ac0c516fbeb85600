package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interop"

// Metrics collects counters about captured events and pattern runs.
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	faults      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	unexpected  *prometheus.CounterVec
	exceptions  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	running     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them, together with the Go
// runtime collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events observed by interface wrappers.",
		}, []string{"interface", "direction"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_faults_total",
			Help:      "Transport exceptions reported by interface wrappers.",
		}, []string{"interface"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Pattern transitions taken.",
		}, []string{"pattern", "from", "to"}),
		unexpected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unexpected_events_total",
			Help:      "Events that matched no outgoing guard.",
		}, []string{"pattern", "state"}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exceptions_total",
			Help:      "Exceptions recorded in run reports.",
		}, []string{"pattern"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished pattern runs by outcome.",
		}, []string{"pattern", "outcome"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_progress",
			Help:      "Pattern runs currently in progress.",
		}, []string{"pattern"}),
	}

	m.registry.MustRegister(
		m.events, m.faults, m.transitions, m.unexpected, m.exceptions, m.runs, m.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that update the run metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			if e.Kind == domain.KindInitial {
				m.running.WithLabelValues(e.Pattern).Inc()
			}
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(e.Pattern, e.From, e.To).Inc()
		},
		OnUnexpected: func(_ context.Context, e *domain.EventNotice) {
			m.unexpected.WithLabelValues(e.Pattern, e.StateID).Inc()
		},
		OnException: func(_ context.Context, e *domain.EventNotice) {
			m.exceptions.WithLabelValues(e.Pattern).Inc()
		},
		OnFinish: func(_ context.Context, e *domain.FinishEvent) {
			m.running.WithLabelValues(e.Pattern).Dec()
			m.runs.WithLabelValues(e.Pattern, string(e.Report.Outcome)).Inc()
		},
	}
}

// Sink returns an EventSink that counts captured events.
func (m *Metrics) Sink() *Sink {
	return &Sink{m: m}
}

// Sink counts events pushed by wrappers. It keeps no events.
type Sink struct {
	m *Metrics
}

// PushEvent counts ev.
func (s *Sink) PushEvent(ev domain.Event) {
	if ev.IsFault() {
		s.m.faults.WithLabelValues(ev.InterfaceID).Inc()
		return
	}
	s.m.events.WithLabelValues(ev.InterfaceID, string(ev.Direction)).Inc()
}

// LogException counts err as a transport fault.
func (s *Sink) LogException(err error) {
	iface := ""
	var te *domain.TransportError
	if errors.As(err, &te) {
		iface = te.InterfaceID
	}
	s.m.faults.WithLabelValues(iface).Inc()
}
