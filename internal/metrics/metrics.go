// Package metrics provides Prometheus metrics for the binder tracker.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_binder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_binder_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Price Quote Metrics
	PriceQuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_binder_price_quotes_total",
			Help: "Resolved price quotes by outcome",
		},
		[]string{"status"}, // priced, not_found, no_price, fetch_error, cancelled
	)

	PriceCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_binder_price_cache_hits_total",
			Help: "Price quote cache hit count",
		},
	)

	PriceCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_binder_price_cache_misses_total",
			Help: "Price quote cache miss count",
		},
	)

	// Scryfall API Metrics
	ScryfallRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_binder_scryfall_requests_total",
			Help: "Total Scryfall printing lookups by result",
		},
		[]string{"result"}, // "ok", "not_found", "error"
	)

	ScryfallLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_binder_scryfall_latency_seconds",
			Help:    "Scryfall printing lookup latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// Enrichment Metrics
	EnrichmentBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_binder_enrichment_batch_duration_seconds",
			Help:    "Time taken to enrich one batch of pricing requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	EnrichmentExternalCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_binder_enrichment_external_calls_total",
			Help: "Pricing requests that reached the catalog during enrichment",
		},
	)

	// Price Worker Metrics
	PriceWorkerBindersRefreshed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_binder_worker_binders_refreshed_total",
			Help: "Total number of binders refreshed by the price worker",
		},
	)

	PriceQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_binder_price_queue_size",
			Help: "Number of binders waiting in the priority refresh queue",
		},
	)

	// Binder Metrics
	BinderCardsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tcg_binder_cards_total",
			Help: "Total number of cards in a binder",
		},
		[]string{"binder"},
	)

	BinderValueUSD = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tcg_binder_value_usd",
			Help: "Rounded total value of a binder in USD",
		},
		[]string{"binder"},
	)
)

// ObserveBinder records the latest totals of a binder
func ObserveBinder(id string, totalCards int, totalValue float64) {
	BinderCardsTotal.WithLabelValues(id).Set(float64(totalCards))
	BinderValueUSD.WithLabelValues(id).Set(totalValue)
}

// ForgetBinder drops the series of a deleted binder
func ForgetBinder(id string) {
	BinderCardsTotal.DeleteLabelValues(id)
	BinderValueUSD.DeleteLabelValues(id)
}
