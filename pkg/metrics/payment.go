package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records the payment-intent lifecycle.
type PaymentMetrics struct {
	initiated   *prometheus.CounterVec
	confirmed   *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
	fulfillment *prometheus.CounterVec
	gateway     *prometheus.HistogramVec
	queueDepth  *prometheus.GaugeVec
}

// NewPaymentMetrics registers the payment metrics on reg. A nil registerer
// yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	m := &PaymentMetrics{
		initiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_intents_initiated_total",
			Help: "Payment intents created, by purpose.",
		}, []string{"purpose"}),
		confirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_intents_confirmed_total",
			Help: "Confirmation attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
		fulfillment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_fulfillments_total",
			Help: "Fulfillment runs by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		gateway: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "consultation_queue_depth",
			Help: "Queued consultations per doctor after the last recomputation.",
		}, []string{"doctor_id"}),
	}
	reg.MustRegister(m.initiated, m.confirmed, m.webhooks, m.fulfillment, m.gateway, m.queueDepth)
	return m
}

func (m *PaymentMetrics) IncInitiated(purpose string) {
	if m == nil || m.initiated == nil {
		return
	}
	m.initiated.WithLabelValues(normalizeLabel(purpose)).Inc()
}

func (m *PaymentMetrics) IncConfirmed(source, outcome string) {
	if m == nil || m.confirmed == nil {
		return
	}
	m.confirmed.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncFulfillment(purpose, outcome string) {
	if m == nil || m.fulfillment == nil {
		return
	}
	m.fulfillment.WithLabelValues(normalizeLabel(purpose), normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) ObserveGateway(operation, outcome string, d time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Observe(d.Seconds())
}

func (m *PaymentMetrics) SetQueueDepth(doctorID string, depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(doctorID)).Set(float64(depth))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
