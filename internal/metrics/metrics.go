// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Resolve outcomes used as the `outcome` label.
const (
	OutcomeCached   = "cached"
	OutcomeOpened   = "opened"
	OutcomeDefault  = "default"
	OutcomeInactive = "inactive"
)

var (
	ActiveTenants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tenants",
			Help: "Number of tenant connections currently cached.",
		})

	TenantResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolve_total",
			Help: "Tenant resolutions by outcome.",
		}, []string{"outcome"})

	TenantConnectErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_connect_errors_total",
			Help: "Cumulative number of failed tenant database opens.",
		})

	TenantEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_evict_total",
			Help: "Cumulative number of tenant connections evicted from the cache.",
		})

	DirectoryUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "directory_up",
			Help: "1 when the tenant directory answered its last probe, 0 otherwise.",
		})

	TenantLifecycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_lifecycle_total",
			Help: "Tenant lifecycle operations by op and result.",
		}, []string{"op", "result"})
)

func init() {
	prometheus.MustRegister(
		ActiveTenants,
		TenantResolveTotal,
		TenantConnectErrorsTotal,
		TenantEvictTotal,
		DirectoryUp,
		TenantLifecycleTotal,
	)
}
