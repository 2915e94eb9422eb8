package alert

import (
	"context"
	"net/http"
	"strconv"

	"bandwidth-guard/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const programName = "bandwidth_guard"

// PrometheusMetrics holds the gauges and counters exported for scraping
type PrometheusMetrics struct {
	UploadMbps        prometheus.Gauge
	DownloadMbps      prometheus.Gauge
	AlertCounter      *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	ConnectionInfo    *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the metric set and registers it with reg
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		UploadMbps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "network_upload_mbps",
			Help: "Network upload speed in Mbps",
		}),
		DownloadMbps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "network_download_mbps",
			Help: "Network download speed in Mbps",
		}),
		AlertCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "network_threshold_alerts_total",
				Help: "Total bandwidth threshold alerts by direction",
			},
			[]string{"direction"},
		),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "network_active_connections",
			Help: "Number of active network connections",
		}),
		ConnectionInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "network_connection_info",
				Help: "Active connection info (value=1 means active)",
			},
			[]string{"remote_ip", "hostname", "port"},
		),
	}

	for _, c := range []prometheus.Collector{m.UploadMbps, m.DownloadMbps, m.AlertCounter, m.ActiveConnections, m.ConnectionInfo} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CreateCustomRegistry creates a registry with the runtime, process and
// build info collectors already registered
func CreateCustomRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(versioncollector.NewCollector(programName))

	return registry
}

// PrometheusSink keeps the bandwidth gauges current for scraping
type PrometheusSink struct {
	registry *prometheus.Registry
	metrics  *PrometheusMetrics
	logger   *logrus.Logger
}

// NewPrometheusSink creates a sink backed by its own registry
func NewPrometheusSink(logger *logrus.Logger) (*PrometheusSink, error) {
	registry := CreateCustomRegistry()

	metrics, err := NewPrometheusMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &PrometheusSink{
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

func (ps *PrometheusSink) Name() string {
	return "prometheus"
}

// Handler returns the /metrics handler for this sink's registry
func (ps *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{
		ErrorLog: ps.logger,
	})
}

// GetMetrics returns the exported metric set
func (ps *PrometheusSink) GetMetrics() *PrometheusMetrics {
	return ps.metrics
}

func (ps *PrometheusSink) OnMeasurement(_ context.Context, rate model.RateMeasurement) error {
	ps.metrics.UploadMbps.Set(rate.UploadMbps)
	ps.metrics.DownloadMbps.Set(rate.DownloadMbps)
	ps.logger.Debugf("Exported to Prometheus: Upload=%.2f, Download=%.2f", rate.UploadMbps, rate.DownloadMbps)
	return nil
}

func (ps *PrometheusSink) OnAlert(_ context.Context, event model.AlertEvent) error {
	ps.metrics.AlertCounter.WithLabelValues(event.Direction.String()).Inc()
	return nil
}

// OnConnections replaces the exported connection set
func (ps *PrometheusSink) OnConnections(_ context.Context, conns []model.Connection) error {
	ps.metrics.ActiveConnections.Set(float64(len(conns)))

	ps.metrics.ConnectionInfo.Reset()
	for _, c := range conns {
		hostname := c.Hostname
		if hostname == "" {
			hostname = "N/A"
		}
		ps.metrics.ConnectionInfo.WithLabelValues(c.RemoteIP, hostname, strconv.FormatUint(uint64(c.RemotePort), 10)).Set(1)
	}
	return nil
}

func (ps *PrometheusSink) Close(context.Context) error {
	return nil
}
