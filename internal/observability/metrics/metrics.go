package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters for the realtime chat client.
type ChatMetrics struct {
	inboundTotal    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	reconnectsTotal prometheus.Counter
	directoryTotal  *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "inbound_frames_total",
			Help:      "Total inbound websocket frames",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "outbound_frames_total",
			Help:      "Total outbound websocket frames",
		}, []string{"status"}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "reconnects_total",
			Help:      "Total scheduled reconnect attempts",
		}),
		directoryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "directory",
			Name:      "calls_total",
			Help:      "Total directory REST calls",
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.reconnectsTotal, m.directoryTotal)
	return m
}

func (m *ChatMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

func (m *ChatMetrics) ObserveDirectoryCall(operation, status string) {
	if m == nil {
		return
	}
	m.directoryTotal.WithLabelValues(operation, status).Inc()
}
