package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the payment relay
var (
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhook_deliveries_total",
			Help: "Total number of payment webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	GrantAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_grant_attempts_total",
			Help: "Total number of access grant attempts by grantor and result",
		},
		[]string{"grantor", "result"},
	)

	FanoutFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fanout_failures_total",
			Help: "Total number of failed notification sends by sink",
		},
		[]string{"sink"},
	)

	EntitlementsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_entitlements_active",
			Help: "Number of subjects currently holding paid access",
		},
	)

	WebhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_webhook_processing_duration_seconds",
			Help:    "Duration of payment webhook processing",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry.
// Calling it more than once is harmless.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(WebhookDeliveriesTotal)
		prometheus.MustRegister(GrantAttemptsTotal)
		prometheus.MustRegister(FanoutFailuresTotal)
		prometheus.MustRegister(EntitlementsActive)
		prometheus.MustRegister(WebhookProcessingDuration)
	})
}

// GrantResult labels a grant attempt.
func GrantResult(err error) string {
	if err != nil {
		return "failed"
	}
	return "granted"
}
