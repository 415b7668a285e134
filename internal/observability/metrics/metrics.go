package metrics

import "github.com/prometheus/client_golang/prometheus"

// WidgetMetrics exposes counters/histograms for the widget runtime.
type WidgetMetrics struct {
	leadSubmissions  *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	pollTicks        *prometheus.CounterVec
	pollLatency      prometheus.Histogram
	newMessagePulses prometheus.Counter
	popupImpressions *prometheus.CounterVec
	popupCloses      prometheus.Counter
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		leadSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wavebox",
			Subsystem: "chat",
			Name:      "lead_submissions_total",
			Help:      "Total lead form submissions",
		}, []string{"status"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wavebox",
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Total visitor messages sent",
		}, []string{"status"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wavebox",
			Subsystem: "chat",
			Name:      "poll_ticks_total",
			Help:      "Total message sync poll ticks",
		}, []string{"status"}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wavebox",
			Subsystem: "chat",
			Name:      "poll_latency_seconds",
			Help:      "Latency of message sync fetches",
			Buckets:   prometheus.DefBuckets,
		}),
		newMessagePulses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wavebox",
			Subsystem: "chat",
			Name:      "new_message_pulses_total",
			Help:      "Total new-message notification pulses",
		}),
		popupImpressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wavebox",
			Subsystem: "popup",
			Name:      "impressions_total",
			Help:      "Total popups shown",
		}, []string{"trigger"}),
		popupCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wavebox",
			Subsystem: "popup",
			Name:      "closes_total",
			Help:      "Total popups closed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.leadSubmissions,
		m.messagesSent,
		m.pollTicks,
		m.pollLatency,
		m.newMessagePulses,
		m.popupImpressions,
		m.popupCloses,
	)
	return m
}

func (m *WidgetMetrics) ObserveLeadSubmission(status string) {
	if m == nil {
		return
	}
	m.leadSubmissions.WithLabelValues(status).Inc()
}

func (m *WidgetMetrics) ObserveMessageSent(status string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(status).Inc()
}

func (m *WidgetMetrics) ObservePollTick(status string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(status).Inc()
}

func (m *WidgetMetrics) ObservePollLatency(seconds float64) {
	if m == nil {
		return
	}
	m.pollLatency.Observe(seconds)
}

func (m *WidgetMetrics) ObserveNewMessagePulse() {
	if m == nil {
		return
	}
	m.newMessagePulses.Inc()
}

func (m *WidgetMetrics) ObservePopupImpression(trigger string) {
	if m == nil {
		return
	}
	m.popupImpressions.WithLabelValues(trigger).Inc()
}

func (m *WidgetMetrics) ObservePopupClose() {
	if m == nil {
		return
	}
	m.popupCloses.Inc()
}
