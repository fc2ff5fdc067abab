package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts price-tag scans by provider and outcome
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelens_scans_total",
		Help: "Price-tag scans by vision provider and outcome",
	}, []string{"provider", "status"})

	// ExtractedProducts observes how many products one scan or extraction produced
	ExtractedProducts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricelens_extracted_products",
		Help:    "Products extracted per request",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	// ComparisonsTotal counts comparisons by verdict (FIRST, SECOND, EQUAL, NONE, ERROR)
	ComparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelens_comparisons_total",
		Help: "Price comparisons by verdict",
	}, []string{"verdict"})

	// UpstreamRequestsTotal counts calls to external APIs
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelens_upstream_requests_total",
		Help: "Requests to shopping and vision providers by outcome",
	}, []string{"upstream", "status"})

	// UpstreamRequestDuration observes external API latency
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricelens_upstream_request_duration_seconds",
		Help:    "Latency of shopping and vision provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream"})

	// CacheLookupsTotal counts offer cache lookups by result (hit, miss, error)
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelens_cache_lookups_total",
		Help: "Offer cache lookups by result",
	}, []string{"result"})

	// QuotaUsed mirrors the OCR usage counter for the current month
	QuotaUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricelens_ocr_quota_used",
		Help: "OCR calls used in the current month",
	})

	// HTTPRequestsTotal counts served requests
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelens_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes handler latency
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricelens_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Status maps an error to the outcome label used by the counters above
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
