package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docreader",
			Name:      "queries_total",
			Help:      "Total document questions by result (answered, rate_limited, failed)",
		},
		[]string{"result"},
	)

	renderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docreader",
			Name:      "render_duration_seconds",
			Help:      "Duration of page-range rasterization",
			Buckets:   prometheus.DefBuckets,
		},
	)

	renderResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docreader",
			Name:      "render_results_total",
			Help:      "Rasterization attempts by result (displayed, fallback)",
		},
		[]string{"result"},
	)

	pagesRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docreader",
			Name:      "pages_rendered_total",
			Help:      "Total pages rasterized to images",
		},
	)

	embeddingReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docreader",
			Name:      "embedding_requests_total",
			Help:      "Embedding API requests by model and result",
		},
		[]string{"model", "result"},
	)

	embeddingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docreader",
			Name:      "embedding_request_duration_seconds",
			Help:      "Duration of embedding API requests by model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	chatReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docreader",
			Name:      "chat_requests_total",
			Help:      "Chat completion requests by model and result",
		},
		[]string{"model", "result"},
	)

	documentsIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docreader",
			Name:      "documents_indexed_total",
			Help:      "Uploaded documents by result (indexed, rejected)",
		},
		[]string{"result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(queriesTotal, renderDuration, renderResults, pagesRendered, embeddingReqs, embeddingLatency, chatReqs, documentsIndexed)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncQuery(result string) { queriesTotal.WithLabelValues(result).Inc() }

func ObserveRender(pages int, dur time.Duration, ok bool) {
	renderDuration.Observe(dur.Seconds())
	if ok {
		renderResults.WithLabelValues("displayed").Inc()
		pagesRendered.Add(float64(pages))
	} else {
		renderResults.WithLabelValues("fallback").Inc()
	}
}

func ObserveEmbedding(model, result string, dur time.Duration) {
	embeddingReqs.WithLabelValues(model, result).Inc()
	embeddingLatency.WithLabelValues(model).Observe(dur.Seconds())
}

func IncChat(model, result string) { chatReqs.WithLabelValues(model, result).Inc() }

func IncDocument(result string) { documentsIndexed.WithLabelValues(result).Inc() }
