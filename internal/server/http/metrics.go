package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics describe the traffic going through the parser.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	Messages          *prometheus.CounterVec
	ParseErrors       *prometheus.CounterVec
	Upgrades          prometheus.Counter
	BytesRead         prometheus.Counter
}

// NewMetrics registers the metrics within the reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "h1"
	}

	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently served connections",
			},
		),
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of parsed messages",
			},
			[]string{"method"},
		),
		ParseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_errors_total",
				Help:      "Total number of streams rejected by the parser",
			},
			[]string{"code"},
		),
		Upgrades: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upgrades_total",
				Help:      "Total number of connections switched to another protocol",
			},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_bytes_total",
				Help:      "Total number of bytes fed to the parser",
			},
		),
	}
}
