package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reef_request_duration_seconds",
			Help:    "Request processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180},
		},
		[]string{"route"},
	)

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reef_request_total",
			Help: "Total requests by route and status",
		},
		[]string{"route", "status"},
	)

	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reef_ratelimit_rejections_total",
			Help: "Requests rejected by the fixed-window limiter",
		},
		[]string{"route"},
	)

	CreditsCharged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reef_credits_charged_total",
			Help: "Credits charged by operation",
		},
		[]string{"operation"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reef_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"type"},
	)

	PipelinePapersProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reef_pipeline_papers_processed_total",
			Help: "Papers successfully processed by the extraction pipeline",
		},
	)

	PipelinePapersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reef_pipeline_papers_failed_total",
			Help: "Papers that failed in the extraction pipeline",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reef_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reef_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	PapersIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reef_papers_ingested_total",
			Help: "Papers ingested into the vector store",
		},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reef_search_results_count",
			Help:    "Number of papers returned per semantic search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestTotal)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(CreditsCharged)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(PipelinePapersProcessed)
	prometheus.MustRegister(PipelinePapersFailed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PapersIngested)
	prometheus.MustRegister(SearchResultsCount)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records duration and status for every matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestTotal.WithLabelValues(route, strconv.Itoa(c.Response().StatusCode())).Inc()

		return err
	}
}
