// Package metrics exposes the eqs_* OpenMetrics series at METRICS_SOCKET
// and a periodic p50/p95 ZK wait-time summary log line, grounded on the
// teacher's go.mod dependency set (client_golang, gorilla/mux) standing in
// for the original service's prometheus_client/hyper pairing.
package metrics

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// Metrics holds every collector registered under the eqs_ namespace,
// against its own registry so a process (or a test) can construct more
// than one independent instance.
type Metrics struct {
	registry      *prometheus.Registry
	grpcReq       *prometheus.CounterVec
	jobsAttempted prometheus.Counter
	jobsFinished  prometheus.Counter
	jobsErrors    *prometheus.CounterVec
	zkWaitTime    prometheus.Histogram

	mu      sync.Mutex
	samples []float64 // recent zk wait times in seconds, for the periodic quantile log line
}

// waitTimeBuckets computes histogram bucket edges as 5%-of-timeout
// increments, derived from the configured proof generation timeout
// rather than a hardcoded bucket list.
func waitTimeBuckets(timeout time.Duration) []float64 {
	step := timeout.Seconds() * 0.05
	buckets := make([]float64, 0, 20)
	for edge := step; edge < timeout.Seconds(); edge += step {
		buckets = append(buckets, edge)
	}
	return append(buckets, timeout.Seconds())
}

// New registers the eqs_* collectors against a fresh registry.
func New(timeout time.Duration) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		grpcReq: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_grpc_req",
			Help: "Total number of gRPC requests served, labeled by method",
		}, []string{"method"}),
		jobsAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eqs_jobs_attempted",
			Help: "Total number of job state-machine activations, regardless of outcome",
		}),
		jobsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eqs_jobs_finished",
			Help: "Total number of jobs that reached ZkProofFinished",
		}),
		jobsErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_jobs_errors",
			Help: "Total number of job failures, labeled by error_type",
		}, []string{"error_type"}),
		zkWaitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eqs_zk_proof_wait_time",
			Help:    "Seconds spent waiting on a ZK proof request, in buckets of 5% of the configured timeout",
			Buckets: waitTimeBuckets(timeout),
		}),
	}

	m.registry.MustRegister(m.grpcReq, m.jobsAttempted, m.jobsFinished, m.jobsErrors, m.zkWaitTime)
	return m
}

// GrpcRequest implements grpcapi.Recorder.
func (m *Metrics) GrpcRequest(method string) {
	m.grpcReq.WithLabelValues(method).Inc()
}

// JobAttempted implements worker.Recorder.
func (m *Metrics) JobAttempted() { m.jobsAttempted.Inc() }

// JobFinished implements worker.Recorder.
func (m *Metrics) JobFinished() { m.jobsFinished.Inc() }

// JobError implements worker.Recorder.
func (m *Metrics) JobError(errorType string) {
	m.jobsErrors.WithLabelValues(errorType).Inc()
}

// ZkProofWaitTime implements worker.Recorder. It records into both the
// exported histogram and an in-memory sample window used for the periodic
// quantile summary.
func (m *Metrics) ZkProofWaitTime(d time.Duration) {
	seconds := d.Seconds()
	m.zkWaitTime.Observe(seconds)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, seconds)
	if len(m.samples) > 500 {
		m.samples = m.samples[len(m.samples)-500:]
	}
}

// logQuantileSummary computes p50/p95 over the current sample window with
// gonum/stat and emits one log line, a no-op until at least one sample has
// been recorded.
func (m *Metrics) logQuantileSummary() {
	m.mu.Lock()
	samples := append([]float64{}, m.samples...)
	m.mu.Unlock()

	if len(samples) == 0 {
		return
	}
	sort.Float64s(samples)
	p50 := stat.Quantile(0.50, stat.Empirical, samples, nil)
	p95 := stat.Quantile(0.95, stat.Empirical, samples, nil)
	log.Info().Float64("p50_seconds", p50).Float64("p95_seconds", p95).Int("sample_count", len(samples)).
		Msg("metrics: zk proof wait time summary")
}

// RunQuantileSummaryLoop logs a p50/p95 wait-time summary on a fixed
// interval until ctx is cancelled.
func (m *Metrics) RunQuantileSummaryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.logQuantileSummary()
		}
	}
}

// Handler returns the OpenMetrics HTTP handler for this instance's
// registry, routed through gorilla/mux.
func (m *Metrics) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return r
}
