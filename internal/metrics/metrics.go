// Package metrics exposes Prometheus instrumentation for sync, cache and streak work.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives instrumentation events. Use Noop when metrics are disabled.
type Recorder interface {
	PlaysSynced(added, removed int)
	PlaysDropped(reason string, n int)
	SyncFailed(stage string)
	ObserveSync(d time.Duration)
	CacheHit(domain string)
	CacheMiss(domain string)
	CacheSkipped(domain string)
	StreakSaved(status string)
}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	playsAdded    prometheus.Counter
	playsRemoved  prometheus.Counter
	playsDropped  *prometheus.CounterVec
	syncFailures  *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	cacheRequests *prometheus.CounterVec
	streakSaves   *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		playsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrobble_ledger_plays_added_total",
			Help: "Plays inserted by reconciliation",
		}),
		playsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrobble_ledger_plays_removed_total",
			Help: "Plays retracted by reconciliation",
		}),
		playsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrobble_ledger_plays_dropped_total",
			Help: "Upstream events discarded before diffing",
		}, []string{"reason"}),
		syncFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrobble_ledger_sync_failures_total",
			Help: "Failed user syncs by stage",
		}, []string{"stage"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrobble_ledger_sync_duration_seconds",
			Help:    "Duration of a user sync",
			Buckets: prometheus.DefBuckets,
		}),
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrobble_ledger_cache_requests_total",
			Help: "Overview cache lookups by domain and result",
		}, []string{"domain", "result"}),
		streakSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrobble_ledger_streak_saves_total",
			Help: "Streak save attempts by outcome",
		}, []string{"status"}),
	}
}

func (p *Prometheus) PlaysSynced(added, removed int) {
	p.playsAdded.Add(float64(added))
	p.playsRemoved.Add(float64(removed))
}

func (p *Prometheus) PlaysDropped(reason string, n int) {
	p.playsDropped.WithLabelValues(reason).Add(float64(n))
}

func (p *Prometheus) SyncFailed(stage string) {
	p.syncFailures.WithLabelValues(stage).Inc()
}

func (p *Prometheus) ObserveSync(d time.Duration) {
	p.syncDuration.Observe(d.Seconds())
}

func (p *Prometheus) CacheHit(domain string) {
	p.cacheRequests.WithLabelValues(domain, "hit").Inc()
}

func (p *Prometheus) CacheMiss(domain string) {
	p.cacheRequests.WithLabelValues(domain, "miss").Inc()
}

func (p *Prometheus) CacheSkipped(domain string) {
	p.cacheRequests.WithLabelValues(domain, "skipped").Inc()
}

func (p *Prometheus) StreakSaved(status string) {
	p.streakSaves.WithLabelValues(status).Inc()
}

// Noop discards all events.
type Noop struct{}

func (Noop) PlaysSynced(_, _ int) {}
func (Noop) PlaysDropped(_ string, _ int) {}
func (Noop) SyncFailed(_ string) {}
func (Noop) ObserveSync(_ time.Duration) {}
func (Noop) CacheHit(_ string) {}
func (Noop) CacheMiss(_ string) {}
func (Noop) CacheSkipped(_ string) {}
func (Noop) StreakSaved(_ string) {}
