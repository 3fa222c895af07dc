// Package metrics exposes Prometheus collectors for the ledger, payouts and
// HTTP layer.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gigwallet/backend/internal/events"
	"github.com/gigwallet/backend/internal/ledger"
)

type Metrics struct {
	reg *prometheus.Registry

	commits   prometheus.Counter
	conflicts prometheus.Counter
	exhausted prometheus.Counter
	payouts   *prometheus.CounterVec
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		commits: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_commits_total",
			Help: "Units of work committed to the ledger.",
		}),
		conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_version_conflicts_total",
			Help: "Commits rejected because a row changed after it was read.",
		}),
		exhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_retries_exhausted_total",
			Help: "Units of work abandoned with a concurrent modification error.",
		}),
		payouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_status_changes_total",
			Help: "Payout status changes by new status.",
		}, []string{"status"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		durations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

var _ ledger.Observer = (*Metrics)(nil)

func (m *Metrics) Committed()  { m.commits.Inc() }
func (m *Metrics) Conflicted() { m.conflicts.Inc() }
func (m *Metrics) Exhausted()  { m.exhausted.Inc() }

// Publisher wraps next so every published payout event is counted.
func (m *Metrics) Publisher(next events.Publisher) events.Publisher {
	return publisherFunc(func(e events.Event) {
		if e.Type == events.TypePayoutUpdate {
			m.payouts.WithLabelValues(e.Status).Inc()
		}
		next.Publish(e)
	})
}

type publisherFunc func(events.Event)

func (f publisherFunc) Publish(e events.Event) { f(e) }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the WebSocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.durations.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
