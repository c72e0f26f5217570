package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across the credential
// subsystem. Package-local latency histograms live next to their stores; the
// cross-cutting business counters live here so wiring stays in one place.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	CredentialsRevoked prometheus.Counter
	CredentialsClaimed prometheus.Counter

	// Verifications is labeled by outcome: valid, revoked, expired, not_found.
	Verifications *prometheus.CounterVec

	// GasUsed observes gas consumed per ledger write, labeled by method.
	GasUsed *prometheus.HistogramVec

	// SagaWarnings counts issued-with-warning outcomes, labeled by kind:
	// reconciliation_required, notify_failed.
	SagaWarnings *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_credentials_issued_total",
			Help: "Total credentials successfully minted on the ledger",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_credentials_revoked_total",
			Help: "Total credentials revoked",
		}),
		CredentialsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_credentials_claimed_total",
			Help: "Total claim tokens successfully consumed",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_verifications_total",
			Help: "Verification queries by outcome",
		}, []string{"outcome"}),
		GasUsed: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certledger_ledger_gas_used",
			Help:    "Gas consumed per ledger write transaction",
			Buckets: prometheus.ExponentialBuckets(21000, 2, 8),
		}, []string{"method"}),
		SagaWarnings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_issuance_warnings_total",
			Help: "Issuance sagas that completed with a warning",
		}, []string{"kind"}),
	}
}
