// Package metrics exposes Prometheus collectors for agent sessions, tool
// calls and the HTTP surface.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MathAgent/internal/agent"
	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/tools"
)

const namespace = "mathagent"

// Registry 持有全部采集器，同时实现 agent.Observer 与 tools.Observer。
type Registry struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	sessions    *prometheus.CounterVec
	steps       *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	counter     prometheus.Histogram
	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec
}

// NewRegistry 创建独立的 prometheus.Registry 并注册全部采集器。
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		}, []string{"handler", "method", "code"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_request_errors_total",
			Help: "Total number of HTTP requests that resulted in a server error.",
		}, []string{"handler", "method"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"handler", "method"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_total",
			Help: "Completed agent sessions by success.",
		}, []string{"success"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "steps_total",
			Help: "Executed plan steps by outcome and error code.",
		}, []string{"outcome", "code"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "session_diagnostics_total",
			Help: "Session-level diagnostics by stage and code.",
		}, []string{"stage", "code"}),
		counter: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "session_counter",
			Help:    "Session counter value at finalization.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 50},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tool_calls_total",
			Help: "Tool dispatches by tool and result code.",
		}, []string{"tool", "code"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tool_call_duration_seconds",
			Help:    "Tool dispatch duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"tool"}),
	}
	r.reg.MustRegister(
		r.httpRequests, r.httpErrors, r.httpLatency,
		r.sessions, r.steps, r.diagnostics, r.counter,
		r.toolCalls, r.toolLatency,
		prometheus.NewGoCollector(),
	)
	return r
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (r *Registry) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		r.httpErrors.WithLabelValues(handler, method).Inc()
	}
	r.httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveSession 实现 agent.Observer。
func (r *Registry) ObserveSession(res *agent.Result) {
	if res == nil {
		return
	}
	success := "false"
	if res.Success {
		success = "true"
	}
	r.sessions.WithLabelValues(success).Inc()
	r.counter.Observe(float64(res.Counter))
	for _, e := range res.Trace {
		r.steps.WithLabelValues(string(e.Outcome), string(e.Code)).Inc()
	}
	for _, d := range res.Diagnostics {
		r.diagnostics.WithLabelValues(string(d.Stage), string(d.Code)).Inc()
	}
}

// ObserveTool 实现 tools.Observer。
func (r *Registry) ObserveTool(name string, elapsed time.Duration, err error) {
	code := ""
	if err != nil {
		code = string(xerrors.CodeOf(err))
	}
	r.toolCalls.WithLabelValues(name, code).Inc()
	r.toolLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Gatherer 暴露底层注册表，供测试读取。
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler exposes the metrics in Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StartServer launches a standalone HTTP server exposing path (default /metrics).
func (r *Registry) StartServer(ctx context.Context, addr, path string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

var (
	_ agent.Observer = (*Registry)(nil)
	_ tools.Observer = (*Registry)(nil)
)
