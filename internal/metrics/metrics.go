package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Zero value is not usable;
// use New.
type Metrics struct {
	reg *prometheus.Registry

	WSConnections  prometheus.Gauge
	WSMessagesSent *prometheus.CounterVec
	WSMessagesDrop prometheus.Counter
	SlotClaims     *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDurations  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "lineup_ws_connections",
			Help: "Number of open websocket connections.",
		}),
		WSMessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lineup_ws_messages_sent_total",
			Help: "Websocket frames queued for delivery, by envelope type.",
		}, []string{"type"}),
		WSMessagesDrop: f.NewCounter(prometheus.CounterOpts{
			Name: "lineup_ws_messages_dropped_total",
			Help: "Websocket frames dropped because a peer's buffer was full or closed.",
		}),
		SlotClaims: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lineup_slot_claims_total",
			Help: "Slot claim attempts by result.",
		}, []string{"result"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lineup_notifications_total",
			Help: "Notification dispatch outcomes.",
		}, []string{"status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lineup_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lineup_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// The observers below are safe on a nil *Metrics so tests can skip wiring.

func (m *Metrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.SlotClaims.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveFrame(msgType string, queued, dropped int) {
	if m == nil {
		return
	}
	if queued > 0 {
		m.WSMessagesSent.WithLabelValues(msgType).Add(float64(queued))
	}
	if dropped > 0 {
		m.WSMessagesDrop.Add(float64(dropped))
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.WSConnections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.WSConnections.Dec()
	}
}
