// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostmap_cache_hits_total",
			Help: "Domain cache lookups answered from cache, by key kind and tier.",
		}, []string{"kind", "tier"})

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostmap_cache_misses_total",
			Help: "Domain cache lookups that went to the store, by key kind.",
		}, []string{"kind"})

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostmap_store_errors_total",
			Help: "Failed store reads, by key kind.",
		}, []string{"kind"})

	AmbiguousPrimaryTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostmap_ambiguous_primary_total",
			Help: "Primary lookups that found more than one active primary domain.",
		})

	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostmap_resolutions_total",
			Help: "Host resolutions, by outcome (matched, fallback, not_found, error).",
		}, []string{"outcome"})

	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostmap_decisions_total",
			Help: "Redirect engine decisions, by kind, status code, and bot flag.",
		}, []string{"kind", "status", "bot"})
)

func init() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		StoreErrorsTotal,
		AmbiguousPrimaryTotal,
		ResolutionsTotal,
		DecisionsTotal,
	)
}
