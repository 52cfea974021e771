package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by Parsers.
// One Metrics value is shared by every connection of a server.
type Metrics struct {
	MessagesAccepted  prometheus.Counter
	MessagesCompleted prometheus.Counter
	Rejections        *prometheus.CounterVec
	BodyBytes         prometheus.Counter
	PipelineDepth     prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		MessagesAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "shape_ingest",
				Name:      "messages_accepted_total",
				Help:      "Total request header blocks accepted",
			},
		),
		MessagesCompleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "shape_ingest",
				Name:      "messages_completed_total",
				Help:      "Total requests received in full",
			},
		),
		Rejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shape_ingest",
				Name:      "rejections_total",
				Help:      "Total connections aborted by the parser",
			},
			[]string{"reason"}, // reason=malformed/duplicate_content_length/...
		),
		BodyBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "shape_ingest",
				Name:      "body_bytes_total",
				Help:      "Total decoded request body bytes",
			},
		),
		PipelineDepth: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "shape_ingest",
				Name:      "pipeline_depth",
				Help:      "Requests held by the parser when a new header block is accepted",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
	}
}
