package resilience

import (
	"github.com/go-i2p/dbpool/lib/metrics"
)

const circuitLabel = "circuit"

// Circuit breaker metrics, one series per breaker name.
var (
	// 0 = closed, 1 = open, 2 = half-open
	circuitState = metrics.NewGaugeVec(
		"circuit_breaker_state",
		"Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
		circuitLabel,
	)

	circuitTrips = metrics.NewCounterVec(
		"circuit_breaker_trips_total",
		"Total number of times the circuit breaker opened",
		circuitLabel,
	)

	circuitRejections = metrics.NewCounterVec(
		"circuit_breaker_rejections_total",
		"Total connect attempts rejected by an open circuit breaker",
		circuitLabel,
	)
)
