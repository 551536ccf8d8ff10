package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Policy uploads processed (counter - only goes up)
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policypal_uploads_total",
		Help: "Total number of policy documents uploaded",
	})

	// Chat requests counter
	chatRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policypal_chat_requests_total",
		Help: "Total number of chat messages processed",
	})

	// Chat errors by type
	chatErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policypal_chat_errors_total",
		Help: "Total number of chat errors by type",
	}, []string{"error_type"})

	// Extractions that fell back to the raw-text record
	extractionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policypal_extraction_fallbacks_total",
		Help: "Total number of extractions that could not be parsed into structured fields",
	})

	// Assistant response latency histogram
	responseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "policypal_response_duration_seconds",
		Help:    "Assistant response latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120}, // up to 2 minutes for polled responses
	})
)
