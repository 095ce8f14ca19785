// Package metrics exports clustering statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"palettecam/internal/kmeans"
)

const namespace = "palettecam"

// Collector implements kmeans.Observer.
type Collector struct {
	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	duration   prometheus.Histogram
	starved    prometheus.Counter
	inertia    prometheus.Gauge
}

var _ kmeans.Observer = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kmeans_runs_total",
			Help:      "Clustering runs by outcome",
		}, []string{"status"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kmeans_iterations",
			Help:      "Iterations per completed clustering run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kmeans_run_duration_seconds",
			Help:      "Wall time of clustering runs",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		starved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kmeans_starved_clusters_total",
			Help:      "Clusters left without points at the end of a run",
		}),
		inertia: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kmeans_last_inertia",
			Help:      "Sum of squared distances reported by the latest iteration",
		}),
	}

	for _, col := range []prometheus.Collector{c.runs, c.iterations, c.duration, c.starved, c.inertia} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveIteration(_ int, inertia float64, _ int) {
	c.inertia.Set(inertia)
}

func (c *Collector) ObserveRun(s kmeans.RunStats) {
	c.duration.Observe(s.Duration.Seconds())
	switch {
	case s.Err != nil:
		c.runs.WithLabelValues("error").Inc()
		return
	case s.Converged:
		c.runs.WithLabelValues("converged").Inc()
	default:
		c.runs.WithLabelValues("capped").Inc()
	}
	c.iterations.Observe(float64(s.Iterations))
	c.starved.Add(float64(s.Starved))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
