package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	liveGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "databridge_pool_live_connections",
		Help: "Open backend connections per engine, in use plus idle.",
	}, []string{"engine_id"})

	idleGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "databridge_pool_idle_connections",
		Help: "Idle pooled connections per engine.",
	}, []string{"engine_id"})

	acquireLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "databridge_pool_acquire_seconds",
		Help:    "Time spent acquiring a pooled connection.",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine_id"})

	acquireTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridge_pool_acquire_timeouts_total",
		Help: "Acquire attempts that gave up waiting for a free connection.",
	}, []string{"engine_id"})
)
