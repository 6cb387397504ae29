package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignedURLs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vision_showcase",
		Name:      "signed_urls_total",
		Help:      "Signed URLs issued, by action (read or write).",
	}, []string{"action"})
	StatusChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vision_showcase",
		Name:      "status_checks_total",
		Help:      "Status lookups, by result (pending, processed, error).",
	}, []string{"result"})
	GalleryRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vision_showcase",
		Name:      "gallery_requests_total",
		Help:      "Image list requests, by outcome (ok, error).",
	}, []string{"outcome"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vision_showcase",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route, method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

var once sync.Once

// Init registers collectors with the default registry; safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(SignedURLs, StatusChecks, GalleryRequests, HTTPDuration)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds a dedicated /metrics server on addr (e.g. ":9090"). The
// caller owns its lifecycle.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
