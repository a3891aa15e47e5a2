// Package metrics exposes payment flow counters and gateway latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is safe for concurrent use. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry
	flows    *prometheus.CounterVec
	gateway  *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		flows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupbuy_payment_flows_total",
				Help: "Payment flows by flow, rail and outcome",
			},
			[]string{"flow", "rail", "outcome"},
		),
		gateway: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groupbuy_gateway_request_duration_seconds",
				Help:    "Duration of payment gateway calls",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"operation", "outcome"},
		),
	}
}

func (r *Recorder) Flow(flow, rail, outcome string) {
	if r == nil {
		return
	}

	r.flows.WithLabelValues(flow, rail, outcome).Inc()
}

func (r *Recorder) GatewayCall(operation, outcome string, took time.Duration) {
	if r == nil {
		return
	}

	r.gateway.WithLabelValues(operation, outcome).Observe(took.Seconds())
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
