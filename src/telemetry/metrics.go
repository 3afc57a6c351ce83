package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	RelaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "splitsettings",
			Name:      "relays_total",
			Help:      "Events relayed to other nodes, by event kind.",
		},
		[]string{"kind"},
	)

	RelayDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "splitsettings",
			Name:      "relay_drops_total",
			Help:      "Relay sends dropped on transport failure, by event kind.",
		},
		[]string{"kind"},
	)

	ReportDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "splitsettings",
			Name:      "report_drops_total",
			Help:      "Settings reports dropped by the collector, by reason.",
		},
		[]string{"reason"},
	)

	PollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "splitsettings",
			Name:      "polls_total",
			Help:      "Settings collection rounds started.",
		},
	)

	NotificationDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "splitsettings",
			Name:      "notification_drops_total",
			Help:      "Control-surface notifications dropped on a full subscriber buffer.",
		},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "splitsettings",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(RelaysTotal, RelayDrops, ReportDrops, PollsTotal, NotificationDrops, uptime)
}

// MetricsHandler exposes /metrics. Mount it with
// mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
