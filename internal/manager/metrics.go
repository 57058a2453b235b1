package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validd",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Model load outcomes",
		},
		[]string{"model", "outcome"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "validd",
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Duration of successful model loads",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	unloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "validd",
			Subsystem: "model",
			Name:      "unloads_total",
			Help:      "Model unloads performed",
		},
	)

	generateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "validd",
			Subsystem: "model",
			Name:      "generate_duration_seconds",
			Help:      "Duration of native completion calls",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, unloadsTotal, generateDuration)
}
