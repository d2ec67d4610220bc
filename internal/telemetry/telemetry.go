package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Telemetry bundles the structured logger and the terminal's metrics so
// components receive both through one injected dependency.
type Telemetry struct {
	Log *zap.Logger

	registry *prometheus.Registry

	// PaymentOutcomes counts terminal session states by transport.
	PaymentOutcomes *prometheus.CounterVec
	// SettlementLatency observes the settlement round-trip per endpoint form.
	SettlementLatency *prometheus.HistogramVec
	// SoundTokensIssued counts vendor-side broadcast tokens obtained.
	SoundTokensIssued prometheus.Counter
}

// New builds the telemetry bundle. Verbose switches the logger into
// development mode with debug-level output.
func New(verbose bool) (*Telemetry, error) {
	var log *zap.Logger
	var err error
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()

	t := &Telemetry{
		Log:      log,
		registry: registry,
		PaymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terminal_payment_outcomes_total",
			Help: "Terminal payment attempts by transport and outcome.",
		}, []string{"transport", "outcome"}),
		SettlementLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "terminal_settlement_duration_seconds",
			Help:    "Settlement backend round-trip duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SoundTokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terminal_sound_tokens_issued_total",
			Help: "One-time sound broadcast tokens obtained from the backend.",
		}),
	}

	registry.MustRegister(t.PaymentOutcomes, t.SettlementLatency, t.SoundTokensIssued)

	return t, nil
}

// MetricsHandler serves the terminal's registry for scraping.
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Sync flushes buffered log entries; call on shutdown.
func (t *Telemetry) Sync() {
	_ = t.Log.Sync()
}
