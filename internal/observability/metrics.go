package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// OutcomeOK labels a workflow operation that committed.
const OutcomeOK = "ok"

// Metrics owns the service's Prometheus registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	workflowOps      *prometheus.CounterVec
	txRetries        prometheus.Counter
	txRetryExhausted prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketflow_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketflow_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		workflowOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketflow_workflow_operations_total",
			Help: "Workflow operations by outcome; outcome is ok or the error code.",
		}, []string{"operation", "outcome"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketflow_tx_retries_total",
			Help: "Transactions retried after transient storage contention.",
		}),
		txRetryExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketflow_tx_retry_exhausted_total",
			Help: "Transactions abandoned after exhausting the retry budget.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.workflowOps,
		m.txRetries,
		m.txRetryExhausted,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOperation counts one workflow operation by its result.
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = apperrors.ToDomainError(err).Code
	}
	m.workflowOps.WithLabelValues(operation, outcome).Inc()
}

// TxRetried implements txguard.Observer.
func (m *Metrics) TxRetried() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// TxRetryExhausted implements txguard.Observer.
func (m *Metrics) TxRetryExhausted() {
	if m == nil {
		return
	}
	m.txRetryExhausted.Inc()
}
