package safety

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	safeExecuteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridge_safe_execute_total",
		Help: "SafeExecute outcomes by operation.",
	}, []string{"operation", "outcome"})

	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "databridge_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
	}, []string{"breaker"})

	resourceSlotsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "databridge_resource_slots_in_use",
		Help: "Reserved live-connection slots.",
	})
)
