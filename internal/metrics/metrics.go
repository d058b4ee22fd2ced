package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the site's Prometheus collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheRefreshes   prometheus.Counter
	RefreshFailures  prometheus.Counter
	StaleServes      prometheus.Counter
	LoaderDuration   *prometheus.HistogramVec
	LeadsAccepted    prometheus.Counter
	LeadsRejected    *prometheus.CounterVec
	CSVDownloads     prometheus.Counter
	ConstantsAgeSecs prometheus.Gauge
}

// New creates collectors on a private registry.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sogif_constants_cache_hits_total",
			Help: "Constants lookups served from a fresh cache entry",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sogif_constants_cache_misses_total",
			Help: "Constants lookups that found a cold or expired entry",
		}),
		CacheRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sogif_constants_refreshes_total",
			Help: "Loader invocations made by the constants cache",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sogif_constants_refresh_failures_total",
			Help: "Loader invocations that failed",
		}),
		StaleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sogif_constants_stale_serves_total",
			Help: "Refresh failures answered with the previous bundle",
		}),
		LoaderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sogif_constants_load_duration_seconds",
			Help:    "Duration of constants loads by result",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
		LeadsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sogif_leads_accepted_total",
			Help: "Lead form submissions stored",
		}),
		LeadsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sogif_leads_rejected_total",
			Help: "Lead form submissions refused by reason",
		}, []string{"reason"}),
		CSVDownloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sogif_performance_csv_downloads_total",
			Help: "Performance CSV exports served",
		}),
		ConstantsAgeSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sogif_constants_fetched_at_seconds",
			Help: "Unix time of the bundle currently held by the cache",
		}),
	}

	r.reg.MustRegister(
		r.CacheHits,
		r.CacheMisses,
		r.CacheRefreshes,
		r.RefreshFailures,
		r.StaleServes,
		r.LoaderDuration,
		r.LeadsAccepted,
		r.LeadsRejected,
		r.CSVDownloads,
		r.ConstantsAgeSecs,
	)
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) Hit() {
	if r != nil {
		r.CacheHits.Inc()
	}
}

func (r *Registry) Miss() {
	if r != nil {
		r.CacheMisses.Inc()
	}
}

// Loaded records one loader invocation and its outcome.
func (r *Registry) Loaded(started time.Time, err error) {
	if r == nil {
		return
	}
	r.CacheRefreshes.Inc()
	result := "ok"
	if err != nil {
		result = "error"
		r.RefreshFailures.Inc()
	}
	r.LoaderDuration.WithLabelValues(result).Observe(time.Since(started).Seconds())
}

func (r *Registry) Stale() {
	if r != nil {
		r.StaleServes.Inc()
	}
}

// Fetched publishes the fetch time of the bundle now in the cache.
func (r *Registry) Fetched(at time.Time) {
	if r != nil {
		r.ConstantsAgeSecs.Set(float64(at.Unix()))
	}
}

func (r *Registry) LeadAccepted() {
	if r != nil {
		r.LeadsAccepted.Inc()
	}
}

func (r *Registry) LeadRejected(reason string) {
	if r != nil {
		r.LeadsRejected.WithLabelValues(reason).Inc()
	}
}

func (r *Registry) Download() {
	if r != nil {
		r.CSVDownloads.Inc()
	}
}
