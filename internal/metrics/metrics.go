package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InferenceLatency measures a single Infer call
	InferenceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_inference_latency_seconds",
			Help:    "Inference latency in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)

	// RuleFirings counts how often each rule fired
	RuleFirings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_rule_firings_total",
			Help: "Total number of rule firings",
		},
		[]string{"rule"},
	)

	RecommendedProducts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_recommended_products_total",
			Help: "Total number of product recommendations returned",
		},
	)

	// CatalogProducts exposes the size of the loaded catalog
	CatalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_catalog_products",
			Help: "Number of products in the loaded catalog",
		},
	)

	KnowledgeEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_knowledge_entries",
			Help: "Number of keys in the loaded knowledge base",
		},
	)

	// APIRequests counts API requests
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "method", "status"},
	)

	// APILatency measures API request latency
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_api_request_latency_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"route", "method"},
	)

	// BusMessages counts requests received over NATS
	BusMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_bus_messages_total",
			Help: "Total number of recommendation requests received over NATS",
		},
		[]string{"outcome"},
	)

	// StorageLatency measures database latency
	StorageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_storage_latency_seconds",
			Help:    "Database latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{"operation"},
	)
)
