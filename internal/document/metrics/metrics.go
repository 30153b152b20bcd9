package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document uploads and verification.
type Metrics struct {
	Uploads         *prometheus.CounterVec
	UploadBytes     prometheus.Histogram
	Verifications   *prometheus.CounterVec
	UploadRollbacks prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_document_uploads_total",
			Help: "Documents uploaded by type",
		}, []string{"doc_type"}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeledger_document_upload_bytes",
			Help:    "Size of uploaded document content",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_document_verifications_total",
			Help: "Document verifications by result",
		}, []string{"result"}), // result: "pass", "fail", "error"
		UploadRollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_document_upload_rollbacks_total",
			Help: "Uploads compensated after a failed write",
		}),
	}
}

func (m *Metrics) ObserveUpload(docType string, size int) {
	if m != nil {
		m.Uploads.WithLabelValues(docType).Inc()
		m.UploadBytes.Observe(float64(size))
	}
}

func (m *Metrics) IncrementVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementRollback() {
	if m != nil {
		m.UploadRollbacks.Inc()
	}
}
