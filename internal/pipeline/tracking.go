package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by pipeline runs
type Metrics struct {
	FilesScanned   prometheus.Counter
	FilesParsed    prometheus.Counter
	ReadsExtracted prometheus.Counter
	ReadsInvalid   prometheus.Counter
	ReadsWritten   prometheus.Counter
	RunDuration    prometheus.Histogram
	Runs           *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FilesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastq_summary_files_scanned_total",
			Help: "Fastq files queued by the directory scanner",
		}),
		FilesParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastq_summary_files_parsed_total",
			Help: "Fastq files fully extracted by parser workers",
		}),
		ReadsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastq_summary_reads_extracted_total",
			Help: "Reads pushed to the record queue",
		}),
		ReadsInvalid: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastq_summary_reads_invalid_total",
			Help: "Reads dropped because nothing could be extracted",
		}),
		ReadsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastq_summary_reads_written_total",
			Help: "Rows written to summary tables",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fastq_summary_run_duration_seconds",
			Help:    "Wall-clock duration of pipeline runs",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900, 3600},
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fastq_summary_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),
	}
}

// observeRun records the outcome and duration of one run
func (m *Metrics) observeRun(start time.Time, outcome string) {
	m.RunDuration.Observe(time.Since(start).Seconds())
	m.Runs.WithLabelValues(outcome).Inc()
}
