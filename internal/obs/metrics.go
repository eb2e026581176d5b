package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	authzChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_checks_total",
			Help: "Authorization pipeline evaluations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	authzDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Authorization denials by pipeline stage.",
		},
		[]string{"stage"},
	)

	loginOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_outcomes_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register installs the auth metrics into the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(authzChecks, authzDenials, loginOutcomes)
	})
}

func RecordCheck(operation, outcome string) {
	authzChecks.WithLabelValues(operation, outcome).Inc()
}

func RecordDenial(stage string) {
	authzDenials.WithLabelValues(stage).Inc()
}

func RecordLogin(outcome string) {
	loginOutcomes.WithLabelValues(outcome).Inc()
}
