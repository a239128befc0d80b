package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload error reasons used as the "reason" label.
const (
	reasonBadMultipart = "bad_multipart"
	reasonMissingFile  = "missing_file"
	reasonUnsupported  = "unsupported_type"
	reasonInvalidName  = "invalid_name"
	reasonTooLarge     = "too_large"
	reasonTransfer     = "transfer"
	reasonMissingOrig  = "missing_original"
	reasonThumbnail    = "thumbnail"
	reasonOther        = "other"
)

// Metrics holds application metrics on a dedicated registry so several
// servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	uploads           prometheus.Counter
	uploadBytes       prometheus.Counter
	uploadErrors      *prometheus.CounterVec
	uploadDuration    prometheus.Histogram
	thumbnailDuration prometheus.Histogram
	fileReads         *prometheus.CounterVec
}

// NewMetrics registers the collectors plus Go runtime and process metrics.
func NewMetrics(build BuildInfo) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "px_http_requests_total",
			Help: "HTTP requests by status class.",
		}, []string{"code"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "px_uploads_total",
			Help: "Uploads accepted and thumbnailed.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "px_upload_bytes_total",
			Help: "Bytes of accepted originals.",
		}),
		uploadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "px_upload_errors_total",
			Help: "Failed or rejected uploads by reason.",
		}, []string{"reason"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "px_upload_duration_seconds",
			Help:    "Time to handle an upload request.",
			Buckets: prometheus.DefBuckets,
		}),
		thumbnailDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "px_thumbnail_duration_seconds",
			Help:    "Time to generate and store one thumbnail.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		fileReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "px_file_reads_total",
			Help: "Files served by disposition.",
		}, []string{"disposition"}),
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "px_build_info",
		Help: "Build version and commit.",
	}, []string{"version", "commit"})
	info.WithLabelValues(build.Version, build.Commit).Set(1)

	reg.MustRegister(
		m.requests,
		m.uploads,
		m.uploadBytes,
		m.uploadErrors,
		m.uploadDuration,
		m.thumbnailDuration,
		m.fileReads,
		info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest counts a request under its status class, e.g. "2xx".
func (m *Metrics) RecordRequest(status int) {
	m.requests.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
}

func (m *Metrics) RecordUpload(bytes int64, took, thumbnail time.Duration) {
	m.uploads.Inc()
	m.uploadBytes.Add(float64(bytes))
	m.uploadDuration.Observe(took.Seconds())
	m.thumbnailDuration.Observe(thumbnail.Seconds())
}

func (m *Metrics) RecordUploadError(reason string, took time.Duration) {
	m.uploadErrors.WithLabelValues(reason).Inc()
	m.uploadDuration.Observe(took.Seconds())
}

func (m *Metrics) RecordFileRead(disposition string) {
	m.fileReads.WithLabelValues(disposition).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
