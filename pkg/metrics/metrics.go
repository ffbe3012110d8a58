// Package metrics exposes detector activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hed1ad/goguardml/pkg/detectors"
)

const namespace = "goguardml"

// Collector records fits and detections. It satisfies iforest.Observer.
type Collector struct {
	fitDuration   prometheus.Histogram
	fits          prometheus.Counter
	trees         prometheus.Gauge
	sampleSize    prometheus.Gauge
	pointsScored  prometheus.Counter
	anomalies     *prometheus.CounterVec
	scoreObserved prometheus.Histogram
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		fitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Time spent building the isolation forest.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		fits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fits_total",
			Help:      "Completed forest fits.",
		}),
		trees: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trees",
			Help:      "Trees in the current ensemble.",
		}),
		sampleSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "effective_sample_size",
			Help:      "Bootstrap sample size used by the last fit.",
		}),
		pointsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_scored_total",
			Help:      "Feature vectors scored.",
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Feature vectors classified as anomalies, by severity.",
		}, []string{"severity"}),
		scoreObserved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "anomaly_score",
			Help:      "Distribution of anomaly scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}

	for _, col := range []prometheus.Collector{
		c.fitDuration, c.fits, c.trees, c.sampleSize,
		c.pointsScored, c.anomalies, c.scoreObserved,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveFit records a completed fit.
func (c *Collector) ObserveFit(trees, sampleSize int, elapsed time.Duration) {
	c.fits.Inc()
	c.fitDuration.Observe(elapsed.Seconds())
	c.trees.Set(float64(trees))
	c.sampleSize.Set(float64(sampleSize))
}

// ObserveResult records one detection.
func (c *Collector) ObserveResult(r detectors.Result) {
	c.pointsScored.Inc()
	c.scoreObserved.Observe(r.AnomalyScore)
	if r.IsAnomaly {
		c.anomalies.WithLabelValues(string(r.Severity)).Inc()
	}
}

// WriteTextfile dumps everything gathered by g to path in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
