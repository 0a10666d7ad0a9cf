package cli

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/transferd/transferd/pkg/handler"
	"github.com/transferd/transferd/pkg/quota"
)

// MetricsOpenConnections tracks live connections, incremented and
// decremented by the Listener/Conn wrapper around the accepted socket.
var MetricsOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "transferd_connections_open",
	Help: "Current number of open connections.",
})

// SetupMetrics registers the TUS handler's and quota accountant's
// collectors and mounts the Prometheus scrape endpoint.
func SetupMetrics(mux *http.ServeMux, h *handler.Handler, accountant *quota.Accountant) {
	prometheus.MustRegister(MetricsOpenConnections)
	prometheus.MustRegister(h.Metrics)
	prometheus.MustRegister(quota.NewCollector(accountant))

	stdout.Printf("Using %s as the metrics path.\n", Flags.MetricsPath)
	mux.Handle(Flags.MetricsPath, promhttp.Handler())
}
