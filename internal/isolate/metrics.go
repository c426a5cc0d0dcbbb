package isolate

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_isolate_runs_total",
			Help: "Total isolate executions by mode and result.",
		},
		[]string{"mode", "result"},
	)
	cpuMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helios_isolate_cpu_ms",
			Help:    "Wall-clock milliseconds spent executing guest code per run.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)
	timeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_isolate_timeouts_total",
			Help: "Total isolate executions abandoned after exceeding their quota.",
		},
	)
	memExceededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_isolate_mem_exceeded_total",
			Help: "Total runs whose heap size exceeded their configured quota_mem after the fact.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, cpuMs, timeoutsTotal, memExceededTotal)
}
