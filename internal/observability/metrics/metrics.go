package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogueMetrics exposes counters/histograms for the reply dialogue.
type DialogueMetrics struct {
	messagesTotal   *prometheus.CounterVec
	extractionTotal *prometheus.CounterVec
	slotLookups     *prometheus.CounterVec
	responderTotal  *prometheus.CounterVec
	remindersTotal  *prometheus.CounterVec
	invitesTotal    *prometheus.CounterVec
	handleLatency   prometheus.Histogram
}

func NewDialogueMetrics(reg prometheus.Registerer) *DialogueMetrics {
	m := &DialogueMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptreply",
			Subsystem: "dialogue",
			Name:      "messages_total",
			Help:      "Inbound client messages by classified intent and outcome",
		}, []string{"intent", "outcome"}),
		extractionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptreply",
			Subsystem: "dialogue",
			Name:      "extraction_total",
			Help:      "Date/time extractions by winning strategy",
		}, []string{"strategy"}),
		slotLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptreply",
			Subsystem: "dialogue",
			Name:      "slot_lookups_total",
			Help:      "Availability lookups by result (hit, miss, empty, error)",
		}, []string{"result"}),
		responderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptreply",
			Subsystem: "dialogue",
			Name:      "responder_total",
			Help:      "Fallback responder calls by result",
		}, []string{"result"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptreply",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Reminder dispatches by result",
		}, []string{"result"}),
		invitesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptreply",
			Subsystem: "waitlist",
			Name:      "invites_total",
			Help:      "Waitlist invite rotations by result",
		}, []string{"result"}),
		handleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "apptreply",
			Subsystem: "dialogue",
			Name:      "handle_seconds",
			Help:      "Latency of handling one inbound message",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.extractionTotal, m.slotLookups, m.responderTotal, m.remindersTotal, m.invitesTotal, m.handleLatency)
	return m
}

func (m *DialogueMetrics) ObserveMessage(intent, outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(intent, outcome).Inc()
}

func (m *DialogueMetrics) ObserveExtraction(strategy string) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.extractionTotal.WithLabelValues(strategy).Inc()
}

func (m *DialogueMetrics) ObserveSlotLookup(result string) {
	if m == nil {
		return
	}
	m.slotLookups.WithLabelValues(result).Inc()
}

func (m *DialogueMetrics) ObserveResponder(result string) {
	if m == nil {
		return
	}
	m.responderTotal.WithLabelValues(result).Inc()
}

func (m *DialogueMetrics) ObserveReminder(result string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(result).Inc()
}

func (m *DialogueMetrics) ObserveInvite(result string) {
	if m == nil {
		return
	}
	m.invitesTotal.WithLabelValues(result).Inc()
}

func (m *DialogueMetrics) ObserveHandleLatency(seconds float64) {
	if m == nil {
		return
	}
	m.handleLatency.Observe(seconds)
}
