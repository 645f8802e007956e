package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics tracks inbound payment webhook outcomes.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sportshub_webhook_events_processed",
		Help: "Webhook events handled to completion.",
	}, []string{"event_type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sportshub_webhook_events_duplicate",
		Help: "Webhook events skipped as already processed.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sportshub_webhook_events_failed",
		Help: "Webhook events that returned an error.",
	}, []string{"event_type"})
	reg.MustRegister(processed, duplicate, failed)
	return &WebhookMetrics{
		processed: processed,
		duplicate: duplicate,
		failed:    failed,
	}
}

// IncProcessed increments the processed counter for the event type.
func (w *WebhookMetrics) IncProcessed(eventType string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate increments the duplicate counter for the event type.
func (w *WebhookMetrics) IncDuplicate(eventType string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (w *WebhookMetrics) IncFailed(eventType string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}
