// Package metrics collects analysis counters with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "pkgscope"

// Recorder holds the analysis metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	classifications  *prometheus.CounterVec
	entities         *prometheus.CounterVec
	droppedEntries   *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	tempFiles        prometheus.Counter
	tempBytes        prometheus.Counter
}

// New creates a recorder on its own registry.
func New(namespace string) *Recorder {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg, namespace)
	r.registry = reg
	return r
}

// NewWithRegisterer registers the metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer, namespace string) *Recorder {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := promauto.With(reg)

	return &Recorder{
		classifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifications_total",
				Help:      "Archives classified, by container type",
			},
			[]string{"type"},
		),
		entities: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_total",
				Help:      "Entities produced, by kind and container type",
			},
			[]string{"kind", "type"},
		),
		droppedEntries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_entries_total",
				Help:      "Embedded entries skipped because they could not be parsed",
			},
			[]string{"type"},
		),
		analysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Strategy run time in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"type", "status"},
		),
		tempFiles: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "temp_files_total",
				Help:      "Entries extracted to the cache directory",
			},
		),
		tempBytes: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "temp_bytes_total",
				Help:      "Bytes written to the cache directory",
			},
		),
	}
}

// RecordClassification counts one classified archive
func (r *Recorder) RecordClassification(containerType string) {
	if r == nil {
		return
	}
	r.classifications.WithLabelValues(containerType).Inc()
}

// RecordEntity counts one produced entity
func (r *Recorder) RecordEntity(kind, containerType string) {
	if r == nil {
		return
	}
	r.entities.WithLabelValues(kind, containerType).Inc()
}

// RecordDropped counts one skipped entry
func (r *Recorder) RecordDropped(containerType string) {
	if r == nil {
		return
	}
	r.droppedEntries.WithLabelValues(containerType).Inc()
}

// RecordAnalysis observes one strategy run
func (r *Recorder) RecordAnalysis(containerType string, err error, d time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.analysisDuration.WithLabelValues(containerType, status).Observe(d.Seconds())
}

// RecordExtraction counts one temp file of n bytes
func (r *Recorder) RecordExtraction(n int64) {
	if r == nil {
		return
	}
	r.tempFiles.Inc()
	r.tempBytes.Add(float64(n))
}

// WriteTextfile dumps the recorder's registry in the node exporter
// textfile format. Recorders built with NewWithRegisterer have nothing to
// write and return nil.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || r.registry == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
