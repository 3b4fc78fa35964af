package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dancetonight"

// Metrics holds the search pipeline collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry prometheus.Gatherer

	searches         *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	providerDuration *prometheus.HistogramVec
	extractions      *prometheus.CounterVec
	eventsReturned   prometheus.Histogram
	eventsDropped    prometheus.Counter
	enriched         *prometheus.CounterVec
	archiveUploads   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{registry: reg}
	m.searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_total",
		Help:      "Completed searches by outcome",
	}, []string{"outcome"})
	m.searchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_duration_seconds",
		Help:      "Wall time of a search including pacing",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})
	m.providerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Latency of provider calls by status",
		Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"status"})
	m.extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Response extractions by winning strategy",
	}, []string{"strategy"})
	m.eventsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "events_returned",
		Help:      "Events returned per successful search",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
	m.eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_outside_radius_total",
		Help:      "Events excluded by the radius filter",
	})
	m.enriched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_enriched_total",
		Help:      "Coordinate enrichment attempts by result",
	}, []string{"result"})
	m.archiveUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_uploads_total",
		Help:      "Search archive uploads by status",
	}, []string{"status"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status class",
	}, []string{"route", "code"})

	reg.MustRegister(
		m.searches, m.searchDuration, m.providerDuration,
		m.extractions, m.eventsReturned, m.eventsDropped,
		m.enriched, m.archiveUploads, m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSearch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveProvider(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ObserveExtraction(strategy string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveEvents(returned, outsideRadius int) {
	if m == nil {
		return
	}
	m.eventsReturned.Observe(float64(returned))
	m.eventsDropped.Add(float64(outsideRadius))
}

func (m *Metrics) ObserveEnrichment(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.enriched.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) ObserveArchive(status string) {
	if m == nil {
		return
	}
	m.archiveUploads.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusClass(code)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
