package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quadrature_encoder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	steps    *prom.CounterVec
	wakes    *prom.CounterVec
	errors   *prom.CounterVec
	position prom.Gauge
	latency  prom.Histogram
	running  prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg
// (a fresh registry when reg is nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		steps: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Committed quadrature steps by direction",
		}, []string{"direction"}),
		wakes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "wakes_total",
			Help:      "Reader loop wake-ups by result",
		}, []string{"result"}),
		errors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Recorded decode and I/O errors by kind",
		}, []string{"kind"}),
		position: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "position",
			Help:      "Current signed position count",
		}),
		latency: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sample_latency_seconds",
			Help:      "Time from edge wake-up to state commit",
			Buckets:   prom.ExponentialBuckets(1e-6, 4, 10),
		}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the reader loop is running",
		}),
	}
	reg.MustRegister(pr.steps, pr.wakes, pr.errors, pr.position, pr.latency, pr.running)
	return pr
}

func (p *PrometheusRecorder) ObserveStep(delta int, position int64, latency time.Duration) {
	if p == nil {
		return
	}
	dir := "forward"
	if delta < 0 {
		dir = "reverse"
	}
	p.steps.WithLabelValues(dir).Inc()
	p.position.Set(float64(position))
	p.latency.Observe(latency.Seconds())
}

func (p *PrometheusRecorder) IncWake(result string) {
	if p == nil {
		return
	}
	p.wakes.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncError(kind string) {
	if p == nil {
		return
	}
	p.errors.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetRunning(running bool) {
	if p == nil {
		return
	}
	if running {
		p.running.Set(1)
	} else {
		p.running.Set(0)
	}
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
