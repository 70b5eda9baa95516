package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalSearchRequests tracks search requests dispatched to the API.
	TotalSearchRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_search_requests_total",
		Help: "The total number of search requests sent to the API.",
	})
	// TotalRateLimitHits tracks rate-limit signals that triggered backoff.
	TotalRateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_rate_limit_hits_total",
		Help: "The total number of times the crawler was rate limited.",
	})
	// TotalBackoffExhausted tracks requests abandoned at the backoff ceiling.
	TotalBackoffExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_backoff_exhausted_total",
		Help: "The total number of requests abandoned after the backoff ceiling.",
	})
	// TotalPostsNormalized tracks raw items normalized into posts.
	TotalPostsNormalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_posts_normalized_total",
		Help: "The total number of raw items normalized into posts.",
	})
	// TotalItemsDropped tracks unparseable payloads dropped before normalization.
	TotalItemsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_items_dropped_total",
		Help: "The total number of unparseable payloads dropped.",
	})
	// TotalStreamEvents tracks content events received on live subscriptions.
	TotalStreamEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_stream_events_total",
		Help: "The total number of content events received on stream sessions.",
	})
	// TotalStreamNotices tracks control/limit notices observed on subscriptions.
	TotalStreamNotices = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_stream_limit_notices_total",
		Help: "The total number of control notices observed on stream sessions.",
	})
	// TotalStreamReconnects tracks stream reconnect attempts after rate limiting.
	TotalStreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_stream_reconnects_total",
		Help: "The total number of stream reconnects after rate-limit signals.",
	})
)
