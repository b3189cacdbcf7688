package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics holds the Prometheus collectors for ingestion and retention.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UploadsTotal   *prometheus.CounterVec // imagedrop_uploads_total{status}
	UploadBytes    prometheus.Counter     // imagedrop_upload_bytes_total
	UploadDuration prometheus.Histogram   // imagedrop_upload_duration_seconds

	SweepsTotal   prometheus.Counter   // imagedrop_sweeps_total
	SweepDeleted  prometheus.Counter   // imagedrop_sweep_deleted_total
	SweepErrors   prometheus.Counter   // imagedrop_sweep_errors_total
	SweepDuration prometheus.Histogram // imagedrop_sweep_duration_seconds
	LastSweepTime prometheus.Gauge     // imagedrop_last_sweep_timestamp_seconds
	StoredBlobs   prometheus.Gauge     // imagedrop_stored_blobs
}

func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &Metrics{
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imagedrop_uploads_total",
			Help: "Upload requests by outcome",
		}, []string{"status"}),
		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_upload_bytes_total",
			Help: "Decoded bytes written to the upload directory",
		}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "imagedrop_upload_duration_seconds",
			Help:    "Time spent decoding and storing an upload",
			Buckets: prometheus.DefBuckets,
		}),
		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_sweeps_total",
			Help: "Completed retention sweeps",
		}),
		SweepDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_sweep_deleted_total",
			Help: "Files removed by retention sweeps",
		}),
		SweepErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_sweep_errors_total",
			Help: "Entries a retention sweep failed to process",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "imagedrop_sweep_duration_seconds",
			Help:    "Retention sweep duration",
			Buckets: prometheus.DefBuckets,
		}),
		LastSweepTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "imagedrop_last_sweep_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
		StoredBlobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "imagedrop_stored_blobs",
			Help: "Files left in the upload directory after the last sweep",
		}),
	}
}

func (m *Metrics) ObserveUpload(status string, size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.UploadBytes.Add(float64(size))
	}
	m.UploadDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSweep(deleted, failed, remaining int, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.SweepsTotal.Inc()
	m.SweepDeleted.Add(float64(deleted))
	m.SweepErrors.Add(float64(failed))
	m.SweepDuration.Observe(elapsed.Seconds())
	m.LastSweepTime.Set(float64(finished.Unix()))
	m.StoredBlobs.Set(float64(remaining))
}
