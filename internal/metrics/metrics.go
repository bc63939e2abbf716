// Package metrics holds the domain Prometheus collectors shared by the
// pipeline, the refresher, and the outbound clients. HTTP-level metrics live
// in the middleware package.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	IncomingMessages *prometheus.CounterVec
	OutgoingMessages *prometheus.CounterVec
	StatusCallbacks  *prometheus.CounterVec
	PipelineLatency  *prometheus.HistogramVec
	LLMRequests      *prometheus.CounterVec
	LLMLatency       *prometheus.HistogramVec
	LLMFallbacks     *prometheus.CounterVec
	CloverRequests   *prometheus.CounterVec
	CloverLatency    *prometheus.HistogramVec
	Refreshes        *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	Errors           *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional
// namespace. Later calls return the first instance regardless of namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			IncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incoming_messages_total",
				Help:      "Inbound webhook messages by ledger outcome (new, replay, error).",
			}, []string{"outcome"}),
			OutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outgoing_messages_total",
				Help:      "Outbound messages sent through the transport by status.",
			}, []string{"status"}),
			StatusCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "message_status_callbacks_total",
				Help:      "Delivery status callbacks received from the transport.",
			}, []string{"status"}),
			PipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Time spent answering an inbound message by intent.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"intent"}),
			LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Text-generation requests by provider and outcome.",
			}, []string{"provider", "status"}),
			LLMLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Latency distribution for text-generation calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"provider"}),
			LLMFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_fallbacks_total",
				Help:      "Replies replaced by deterministic fallback text, by reason.",
			}, []string{"reason"}),
			CloverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clover_requests_total",
				Help:      "Total Clover API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			CloverLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "clover_request_duration_seconds",
				Help:      "Latency distribution for Clover API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sales_refreshes_total",
				Help:      "Sales cache refreshes by result (success, failure, shared).",
			}, []string{"result"}),
			RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sales_refresh_duration_seconds",
				Help:      "Wall time of a sales cache refresh.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.IncomingMessages,
			metricsInstance.OutgoingMessages,
			metricsInstance.StatusCallbacks,
			metricsInstance.PipelineLatency,
			metricsInstance.LLMRequests,
			metricsInstance.LLMLatency,
			metricsInstance.LLMFallbacks,
			metricsInstance.CloverRequests,
			metricsInstance.CloverLatency,
			metricsInstance.Refreshes,
			metricsInstance.RefreshDuration,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}

// Error increments the error counter for component. Safe on a nil receiver.
func (m *Metrics) Error(component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component).Inc()
}
