package oauth

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "jarvis"

// Metrics records token broker activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cacheLookups   *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	refreshSeconds prometheus.Histogram
	authorizations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "access_token_cache_lookups_total",
			Help:      "Access token cache lookups by result (hit, miss).",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "token_refreshes_total",
			Help:      "Refresh token redemptions by outcome.",
		}, []string{"outcome"}),
		refreshSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "token_refresh_duration_seconds",
			Help:      "Duration of refresh token redemptions.",
			Buckets:   prometheus.DefBuckets,
		}),
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "authorizations_total",
			Help:      "Authorization flow steps by stage (started, completed) and outcome.",
		}, []string{"stage", "outcome"}),
	}

	for _, c := range []prometheus.Collector{m.cacheLookups, m.refreshes, m.refreshSeconds, m.authorizations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) refresh(err error, seconds float64) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome(err)).Inc()
	m.refreshSeconds.Observe(seconds)
}

func (m *Metrics) authorization(stage string, err error) {
	if m == nil {
		return
	}
	m.authorizations.WithLabelValues(stage, outcome(err)).Inc()
}

// outcome maps an error to a low-cardinality label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrRefreshInvalid), errors.Is(err, ErrRequiresReauth):
		return "requires_reauth"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrProviderAuth):
		return "provider_error"
	case errors.Is(err, ErrProviderContract):
		return "contract_error"
	case errors.Is(err, ErrTokenExchange):
		return "exchange_failed"
	default:
		return "error"
	}
}
