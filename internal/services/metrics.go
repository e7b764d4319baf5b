package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Chat metrics
	ChatRequests       prometheus.Counter
	ChatRequestLatency prometheus.Histogram
	ChatErrors         *prometheus.CounterVec

	// Extraction metrics
	ExtractionAnswers prometheus.Counter
	ExtractionLatency prometheus.Histogram
	ExtractionErrors  prometheus.Counter

	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsClaimed prometheus.Counter
	SessionsSwept   prometheus.Counter

	// Checkout metrics
	CheckoutSessions prometheus.Counter
	WebhookEvents    *prometheus.CounterVec
}

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	return &Metrics{
		ChatRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_chat_requests_total",
			Help: "Total number of chat requests processed",
		}),
		ChatRequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "autopilot_chat_request_duration_seconds",
			Help:    "Chat request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		ChatErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autopilot_chat_errors_total",
			Help: "Total number of chat errors by type",
		}, []string{"error_type"}),

		ExtractionAnswers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_extraction_answers_total",
			Help: "Total number of discovery answers extracted from chat",
		}),
		ExtractionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "autopilot_extraction_duration_seconds",
			Help:    "Extraction LLM call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		ExtractionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_extraction_errors_total",
			Help: "Total number of swallowed extraction failures",
		}),

		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_sessions_created_total",
			Help: "Total number of anonymous sessions created",
		}),
		SessionsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_sessions_claimed_total",
			Help: "Total number of sessions claimed into profiles",
		}),
		SessionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_sessions_swept_total",
			Help: "Total number of expired sessions deleted by the cleanup job",
		}),

		CheckoutSessions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_checkout_sessions_total",
			Help: "Total number of Stripe checkout sessions created",
		}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autopilot_webhook_events_total",
			Help: "Total number of Stripe webhook events by type and outcome",
		}, []string{"event_type", "outcome"}),
	}
}

// RecordChatRequest records a chat request
func (m *Metrics) RecordChatRequest() {
	m.ChatRequests.Inc()
}

// RecordChatLatency records chat request latency
func (m *Metrics) RecordChatLatency(seconds float64) {
	m.ChatRequestLatency.Observe(seconds)
}

// RecordChatError records a chat error
func (m *Metrics) RecordChatError(errorType string) {
	m.ChatErrors.WithLabelValues(errorType).Inc()
}

// RecordExtraction records extracted answer count
func (m *Metrics) RecordExtraction(count int) {
	m.ExtractionAnswers.Add(float64(count))
}

// RecordExtractionLatency records extraction call latency
func (m *Metrics) RecordExtractionLatency(seconds float64) {
	m.ExtractionLatency.Observe(seconds)
}

// RecordExtractionError records a swallowed extraction failure
func (m *Metrics) RecordExtractionError() {
	m.ExtractionErrors.Inc()
}

// RecordSessionCreated records a new anonymous session
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionClaimed records a successful claim
func (m *Metrics) RecordSessionClaimed() {
	m.SessionsClaimed.Inc()
}

// RecordSessionsSwept records expired sessions removed by the cleanup job
func (m *Metrics) RecordSessionsSwept(count int64) {
	m.SessionsSwept.Add(float64(count))
}

// RecordCheckoutSession records a created checkout session
func (m *Metrics) RecordCheckoutSession() {
	m.CheckoutSessions.Inc()
}

// RecordWebhookEvent records a processed webhook delivery
func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
