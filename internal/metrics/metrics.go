// Package metrics wires the multipart orchestrator's counters and
// histograms into a prometheus/client_golang Registry owned by the
// caller, never a global. The namespace/subsystem naming is grounded in
// the teacher's internal/metrics.Collector and
// internal/gateway/metrics.Collector, translated from their hand-rolled
// atomic-counter maps onto real prometheus.Counter/Histogram/Gauge
// vectors. This client exposes no HTTP server (out of scope per the
// spec), so exposition is written to an io.Writer on request rather than
// served — WriteText below, not a promhttp handler.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "s3rest"

// Recorder holds the multipart orchestrator's metrics plus RequestsSigned,
// all registered against a single Registry instance the caller owns. The
// signer has no metrics hook, so nothing in this repository increments
// RequestsSigned.
type Recorder struct {
	registry *prometheus.Registry

	PartsUploaded   *prometheus.CounterVec
	PartRetries     *prometheus.CounterVec
	BytesTransferred prometheus.Counter
	PartDuration    prometheus.Histogram
	UploadDuration  prometheus.Histogram
	ActiveUploads   prometheus.Gauge
	RequestsSigned  prometheus.Counter
}

// NewRecorder creates a fresh Registry and registers every metric against
// it. Callers that want to expose /metrics can pass Registry() to
// promhttp.HandlerFor; this package itself only offers WriteText.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		PartsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multipart",
			Name:      "parts_uploaded_total",
			Help:      "Upload outcomes: success per uploaded part, failed per request that ended in error after the retry policy.",
		}, []string{"outcome"}),
		PartRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multipart",
			Name:      "part_retries_total",
			Help:      "Number of part-upload retry attempts.",
		}, []string{"reason"}),
		BytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multipart",
			Name:      "bytes_transferred_total",
			Help:      "Total bytes successfully uploaded across all parts.",
		}),
		PartDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "multipart",
			Name:      "part_duration_seconds",
			Help:      "Duration of a single request attempt (part, Initiate or Complete) made under the retry policy.",
			Buckets:   prometheus.DefBuckets,
		}),
		UploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "multipart",
			Name:      "upload_duration_seconds",
			Help:      "Duration of an entire multipart upload, Initiate through Complete.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		ActiveUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "multipart",
			Name:      "active_uploads",
			Help:      "Number of multipart uploads currently in flight.",
		}),
		RequestsSigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "requests_signed_total",
			Help:      "Number of requests signed (headers or pre-signed URL).",
		}),
	}

	reg.MustRegister(
		r.PartsUploaded,
		r.PartRetries,
		r.BytesTransferred,
		r.PartDuration,
		r.UploadDuration,
		r.ActiveUploads,
		r.RequestsSigned,
	)
	return r
}

// Registry exposes the underlying Registry, e.g. for tests that want to
// scrape it directly with testutil.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteText renders every registered metric in Prometheus text exposition
// format to w — the CLI's "-m/--metrics-file" flag, not an HTTP endpoint.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
