package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query metrics - Track cache-mediated upstream fetches
var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_queries_total",
			Help: "Total number of entity queries served, by entity kind",
		},
		[]string{"kind"},
	)

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "explorer_cache_hits_total",
		Help: "Query cache hits (fresh entry served without a fetch)",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "explorer_cache_misses_total",
		Help: "Query cache misses (entry absent or stale, fetch issued)",
	})

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_upstream_errors_total",
			Help: "Upstream fetch failures after retries, by source",
		},
		[]string{"source"},
	)

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "explorer_fetch_duration_seconds",
		Help:    "Time taken by upstream fetches, including retries",
		Buckets: prometheus.DefBuckets,
	})
)

// Streaming metrics - Track long-lived Horizon subscriptions
var (
	StreamMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_stream_messages_total",
			Help: "Messages received per stream kind",
		},
		[]string{"stream"},
	)

	StreamReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_stream_reconnects_total",
			Help: "Reconnect attempts per stream kind",
		},
		[]string{"stream"},
	)

	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_stream_errors_total",
			Help: "Explicit error payloads received per stream kind",
		},
		[]string{"stream"},
	)

	LatestLedger = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "explorer_latest_ledger",
		Help: "Latest ledger sequence observed on the active network",
	})

	CurrentTPS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "explorer_current_tps",
		Help: "Most recently computed transactions-per-second sample",
	})
)

// Metadata proxy metrics - Track the stellar.toml endpoint
var (
	TomlRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "explorer_toml_requests_total",
		Help: "Accepted stellar.toml proxy requests",
	})

	TomlBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "explorer_toml_blocked_total",
		Help: "stellar.toml proxy requests rejected by URL validation",
	})

	TomlRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "explorer_toml_rate_limited_total",
		Help: "stellar.toml proxy requests rejected by the per-IP rate limit",
	})

	TomlFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "explorer_toml_fallbacks_total",
		Help: "stellar.toml fetches that degraded to the minimal record",
	})
)

// API metrics - Track HTTP serving
var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "explorer_sse_clients",
		Help: "Currently connected server-sent-event clients",
	})
)
