package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. All record methods
// are nil-safe so components can run without metrics in tests.
type Metrics struct {
	rotations       *prometheus.CounterVec
	registryOps     *prometheus.CounterVec
	keyResolutions  *prometheus.CounterVec
	tokensSigned    *prometheus.CounterVec
	tokensVerified  *prometheus.CounterVec
	cacheSweeps     prometheus.Counter
	cacheEvictions  prometheus.Counter
	resolveDuration prometheus.Histogram
}

// NewMetrics registers the collectors with reg. Passing a fresh registry
// per instance keeps tests free of duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keywheel",
			Name:      "key_rotations_total",
			Help:      "Key rotation attempts by result.",
		}, []string{"result"}),
		registryOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keywheel",
			Name:      "registry_operations_total",
			Help:      "Registry reads and writes by operation and result.",
		}, []string{"operation", "result"}),
		keyResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keywheel",
			Name:      "key_resolutions_total",
			Help:      "Verification key lookups by resolution source.",
		}, []string{"source"}),
		tokensSigned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keywheel",
			Name:      "tokens_signed_total",
			Help:      "Token signing attempts by result.",
		}, []string{"result"}),
		tokensVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keywheel",
			Name:      "tokens_verified_total",
			Help:      "Token verification attempts by result.",
		}, []string{"result"}),
		cacheSweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "keywheel",
			Name:      "cache_sweeps_total",
			Help:      "Verification cache sweep runs.",
		}),
		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "keywheel",
			Name:      "cache_evictions_total",
			Help:      "Entries removed from the verification cache by sweeps.",
		}),
		resolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "keywheel",
			Name:      "key_resolution_duration_seconds",
			Help:      "Latency of verification key resolution.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordRotation(result string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRegistryOp(operation, result string) {
	if m == nil {
		return
	}
	m.registryOps.WithLabelValues(operation, result).Inc()
}

// RecordKeyResolution counts a resolution by its source, one of "active",
// "cache", "registry" or "miss".
func (m *Metrics) RecordKeyResolution(source string) {
	if m == nil {
		return
	}
	m.keyResolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordTokenSigned(result string) {
	if m == nil {
		return
	}
	m.tokensSigned.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTokenVerified(result string) {
	if m == nil {
		return
	}
	m.tokensVerified.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheSweep(evicted int) {
	if m == nil {
		return
	}
	m.cacheSweeps.Inc()
	m.cacheEvictions.Add(float64(evicted))
}

func (m *Metrics) ObserveResolveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}
