// Package metrics counts engine events and REST request latencies in prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	promcomp "github.com/grand-thief-cash/procflow/infra/application/components/prometheus"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// EngineMetrics is safe to use through a nil pointer; every method is then a no-op.
type EngineMetrics struct {
	*core.BaseComponent
	Prom *promcomp.Component `infra:"dep:prometheus?"`

	once             sync.Once
	registry         *prometheus.Registry
	processesStarted *prometheus.CounterVec
	processesEnded   *prometheus.CounterVec
	tasksCreated     *prometheus.CounterVec
	tasksCompleted   *prometheus.CounterVec
	jobsExecuted     *prometheus.CounterVec
	requests         *prometheus.HistogramVec
}

func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_METRICS)}
}

func (m *EngineMetrics) Start(ctx context.Context) error {
	if err := m.BaseComponent.Start(ctx); err != nil {
		return err
	}
	m.init()
	return nil
}

func (m *EngineMetrics) init() {
	m.once.Do(func() {
		if m.Prom != nil {
			m.registry = m.Prom.Registry()
			m.processesStarted = m.Prom.NewCounter("process_instances_started_total", "Process instances started.", []string{"definition_key"})
			m.processesEnded = m.Prom.NewCounter("process_instances_ended_total", "Process instances ended.", nil)
			m.tasksCreated = m.Prom.NewCounter("tasks_created_total", "User tasks created.", nil)
			m.tasksCompleted = m.Prom.NewCounter("tasks_completed_total", "User tasks completed.", nil)
			m.jobsExecuted = m.Prom.NewCounter("jobs_executed_total", "Jobs executed by outcome.", []string{"outcome"})
			m.requests = m.Prom.NewHistogram("rest_request_duration_seconds", "REST request latency.", []string{"route", "method", "status"}, nil)
			return
		}
		m.registry = prometheus.NewRegistry()
		counter := func(name, help string, labels []string) *prometheus.CounterVec {
			cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "procflow_" + name, Help: help}, labels)
			m.registry.MustRegister(cv)
			return cv
		}
		m.processesStarted = counter("process_instances_started_total", "Process instances started.", []string{"definition_key"})
		m.processesEnded = counter("process_instances_ended_total", "Process instances ended.", nil)
		m.tasksCreated = counter("tasks_created_total", "User tasks created.", nil)
		m.tasksCompleted = counter("tasks_completed_total", "User tasks completed.", nil)
		m.jobsExecuted = counter("jobs_executed_total", "Jobs executed by outcome.", []string{"outcome"})
		m.requests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "procflow_rest_request_duration_seconds",
			Help:    "REST request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"})
		m.registry.MustRegister(m.requests)
	})
}

// Registry is the registry the collectors live in.
func (m *EngineMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	m.init()
	return m.registry
}

func (m *EngineMetrics) ProcessStarted(definitionKey string) {
	if m == nil {
		return
	}
	m.init()
	m.processesStarted.WithLabelValues(definitionKey).Inc()
}

func (m *EngineMetrics) ProcessEnded() {
	if m == nil {
		return
	}
	m.init()
	m.processesEnded.WithLabelValues().Inc()
}

func (m *EngineMetrics) TaskCreated() {
	if m == nil {
		return
	}
	m.init()
	m.tasksCreated.WithLabelValues().Inc()
}

func (m *EngineMetrics) TaskCompleted() {
	if m == nil {
		return
	}
	m.init()
	m.tasksCompleted.WithLabelValues().Inc()
}

func (m *EngineMetrics) JobExecuted(outcome string) {
	if m == nil {
		return
	}
	m.init()
	m.jobsExecuted.WithLabelValues(outcome).Inc()
}

// Middleware observes request latency labeled by the matched chi route pattern.
func (m *EngineMetrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	m.init()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
