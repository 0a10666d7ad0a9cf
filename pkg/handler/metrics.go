package handler

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks counters for the TUS handler (one atomic counter per
// method/outcome instead of a mutex-guarded struct), exposed as a
// prometheus.Collector the same way pkg/quota.Collector wraps the quota
// Accountant.
type Metrics struct {
	requestsTotal     map[string]*uint64
	errorsTotal       *uint64
	bytesReceived     *uint64
	uploadsCreated    *uint64
	uploadsFinished   *uint64
	uploadsTerminated *uint64
}

func newMetrics() Metrics {
	return Metrics{
		requestsTotal: map[string]*uint64{
			http_GET:     new(uint64),
			http_HEAD:    new(uint64),
			http_POST:    new(uint64),
			http_PATCH:   new(uint64),
			http_DELETE:  new(uint64),
			http_OPTIONS: new(uint64),
		},
		errorsTotal:       new(uint64),
		bytesReceived:     new(uint64),
		uploadsCreated:    new(uint64),
		uploadsFinished:   new(uint64),
		uploadsTerminated: new(uint64),
	}
}

const (
	http_GET     = "GET"
	http_HEAD    = "HEAD"
	http_POST    = "POST"
	http_PATCH   = "PATCH"
	http_DELETE  = "DELETE"
	http_OPTIONS = "OPTIONS"
)

func (m Metrics) incRequestsTotal(method string) {
	if ptr, ok := m.requestsTotal[method]; ok {
		atomic.AddUint64(ptr, 1)
	}
}

func (m Metrics) incErrorsTotal() { atomic.AddUint64(m.errorsTotal, 1) }

func (m Metrics) incBytesReceived(delta uint64) { atomic.AddUint64(m.bytesReceived, delta) }

func (m Metrics) incUploadsCreated() { atomic.AddUint64(m.uploadsCreated, 1) }

func (m Metrics) incUploadsFinished() { atomic.AddUint64(m.uploadsFinished, 1) }

func (m Metrics) incUploadsTerminated() { atomic.AddUint64(m.uploadsTerminated, 1) }

var (
	requestsTotalDesc = prometheus.NewDesc(
		"transferd_tus_requests_total", "TUS requests received, by method.", []string{"method"}, nil)
	errorsTotalDesc = prometheus.NewDesc(
		"transferd_tus_errors_total", "TUS requests that ended in an error response.", nil, nil)
	bytesReceivedDesc = prometheus.NewDesc(
		"transferd_tus_bytes_received_total", "Bytes received across all PATCH requests.", nil, nil)
	uploadsCreatedDesc = prometheus.NewDesc(
		"transferd_tus_uploads_created_total", "Uploads created via POST.", nil, nil)
	uploadsFinishedDesc = prometheus.NewDesc(
		"transferd_tus_uploads_finished_total", "Uploads that reached offset == size and were finalized.", nil, nil)
	uploadsTerminatedDesc = prometheus.NewDesc(
		"transferd_tus_uploads_terminated_total", "Uploads removed via DELETE.", nil, nil)
)

func (m Metrics) Describe(descs chan<- *prometheus.Desc) {
	descs <- requestsTotalDesc
	descs <- errorsTotalDesc
	descs <- bytesReceivedDesc
	descs <- uploadsCreatedDesc
	descs <- uploadsFinishedDesc
	descs <- uploadsTerminatedDesc
}

func (m Metrics) Collect(metrics chan<- prometheus.Metric) {
	for method, ptr := range m.requestsTotal {
		metrics <- prometheus.MustNewConstMetric(requestsTotalDesc, prometheus.CounterValue, float64(atomic.LoadUint64(ptr)), method)
	}
	metrics <- prometheus.MustNewConstMetric(errorsTotalDesc, prometheus.CounterValue, float64(atomic.LoadUint64(m.errorsTotal)))
	metrics <- prometheus.MustNewConstMetric(bytesReceivedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(m.bytesReceived)))
	metrics <- prometheus.MustNewConstMetric(uploadsCreatedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(m.uploadsCreated)))
	metrics <- prometheus.MustNewConstMetric(uploadsFinishedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(m.uploadsFinished)))
	metrics <- prometheus.MustNewConstMetric(uploadsTerminatedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(m.uploadsTerminated)))
}
