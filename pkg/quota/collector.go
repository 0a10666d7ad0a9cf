package quota

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	usedBytesDesc = prometheus.NewDesc(
		"transferd_storage_used_bytes",
		"Total bytes currently stored under uploads/ and files/.",
		nil, nil)
	maxBytesDesc = prometheus.NewDesc(
		"transferd_storage_max_bytes",
		"Configured storage cap in bytes, or -1 when unlimited.",
		nil, nil)
	usagePercentDesc = prometheus.NewDesc(
		"transferd_storage_usage_percent",
		"Storage usage as a percentage of the configured cap.",
		nil, nil)
	isFullDesc = prometheus.NewDesc(
		"transferd_storage_is_full",
		"1 if the storage cap has been reached, 0 otherwise.",
		nil, nil)
	filesCountDesc = prometheus.NewDesc(
		"transferd_storage_files_count",
		"Number of completed files on disk.",
		nil, nil)
	uploadsCountDesc = prometheus.NewDesc(
		"transferd_storage_uploads_count",
		"Number of in-progress uploads on disk.",
		nil, nil)
)

// Collector exposes an Accountant's snapshot through Prometheus, following
// the teacher's pkg/prometheuscollector.Collector shape (a thin wrapper
// read on every scrape, registered once with prometheus.MustRegister).
type Collector struct {
	accountant *Accountant
}

// NewCollector wraps accountant for Prometheus registration.
func NewCollector(accountant *Accountant) Collector {
	return Collector{accountant: accountant}
}

func (Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- usedBytesDesc
	descs <- maxBytesDesc
	descs <- usagePercentDesc
	descs <- isFullDesc
	descs <- filesCountDesc
	descs <- uploadsCountDesc
}

func (c Collector) Collect(metrics chan<- prometheus.Metric) {
	usage, err := c.accountant.GetStorageUsage(context.Background())
	if err != nil {
		return
	}

	maxBytes := float64(-1)
	if usage.Max != nil {
		maxBytes = float64(*usage.Max)
	}

	isFull := float64(0)
	if usage.IsFull {
		isFull = 1
	}

	metrics <- prometheus.MustNewConstMetric(usedBytesDesc, prometheus.GaugeValue, float64(usage.Used))
	metrics <- prometheus.MustNewConstMetric(maxBytesDesc, prometheus.GaugeValue, maxBytes)
	metrics <- prometheus.MustNewConstMetric(usagePercentDesc, prometheus.GaugeValue, usage.UsagePercent)
	metrics <- prometheus.MustNewConstMetric(isFullDesc, prometheus.GaugeValue, isFull)
	metrics <- prometheus.MustNewConstMetric(filesCountDesc, prometheus.GaugeValue, float64(usage.FilesCount))
	metrics <- prometheus.MustNewConstMetric(uploadsCountDesc, prometheus.GaugeValue, float64(usage.UploadsCount))
}
