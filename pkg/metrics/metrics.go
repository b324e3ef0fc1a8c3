// Package metrics exposes Prometheus collectors for benchmark runs.
//
// Collectors are registered on a caller supplied registry so the CLI, the
// server and tests can each own an isolated one.
package metrics

import (
	"net/http"
	"time"

	"github.com/mchmarny/cipherbench/pkg/bench"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "cipherbench"
	subsystem = "bench"
)

// Collectors holds the benchmark metrics. It implements bench.Recorder.
type Collectors struct {
	// EncodesTotal counts encode calls.
	EncodesTotal prometheus.Counter

	// EncodeSeconds measures the wall time of a single encode.
	EncodeSeconds prometheus.Histogram

	// ResultsTotal counts scored samples.
	// Labels: outcome (scored, disqualified, degenerate, faulted), success (true, false)
	ResultsTotal *prometheus.CounterVec

	// Score observes the score of every sample.
	Score prometheus.Histogram

	// MetricValue holds the last value seen per metric name.
	// Labels: metric
	MetricValue *prometheus.GaugeVec
}

var _ bench.Recorder = (*Collectors)(nil)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		EncodesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "encodes_total",
			Help:      "Total number of encode calls",
		}),
		EncodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "encode_seconds",
			Help:      "Wall time of a single encode in seconds",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "results_total",
			Help:      "Total number of scored samples by outcome and round-trip success",
		}, []string{"outcome", "success"}),
		Score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "score",
			Help:      "Weighted score per sample",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		MetricValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "metric_value",
			Help:      "Last observed value of each scoring metric",
		}, []string{"metric"}),
	}

	for _, col := range []prometheus.Collector{c.EncodesTotal, c.EncodeSeconds, c.ResultsTotal, c.Score, c.MetricValue} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) ObserveEncode(d time.Duration) {
	c.EncodesTotal.Inc()
	c.EncodeSeconds.Observe(d.Seconds())
}

func (c *Collectors) ObserveResult(r *bench.Result) {
	success := "false"
	if r.Success {
		success = "true"
	}
	c.ResultsTotal.WithLabelValues(r.Outcome.String(), success).Inc()
	c.Score.Observe(r.Score)
	for name, v := range r.Summary {
		c.MetricValue.WithLabelValues(name).Set(v)
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
