package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the backup pipeline.
type Metrics struct {
	RecordsRead      *prometheus.CounterVec // labels: table
	RecordsInserted  *prometheus.CounterVec // labels: table
	RecordsDropped   *prometheus.CounterVec // labels: flow, reason
	StageErrors      *prometheus.CounterVec // labels: stage={read,write,export,publish}, table
	SnapshotsWritten *prometheus.CounterVec // labels: name

	Runs            *prometheus.CounterVec // labels: outcome={success,failed,skipped}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsRead,
		m.RecordsInserted,
		m.RecordsDropped,
		m.StageErrors,
		m.SnapshotsWritten,
		m.Runs,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Rows read from source tables.",
		}, []string{"table"}),
		RecordsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_inserted_total",
			Help:      "Rows newly inserted into backup and cleaned tables.",
		}, []string{"table"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Raw records rejected by cleaning or classification.",
		}, []string{"flow", "reason"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Stage failures by stage and table.",
		}, []string{"stage", "table"}),
		SnapshotsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_written_total",
			Help:      "Snapshot files written by logical name.",
		}, []string{"name"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without a run-level error.",
		}),
	}
}
