package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	ex := &fakeExchanger{}
	tm := newTestManager(t, ex)
	tm.metrics = metrics
	tm.seedIntegration(t, "user-1", "R1")

	ctx := context.Background()
	_, err = tm.GetAccessToken(ctx, "user-1", IntegrationOneDrive)
	require.NoError(t, err)
	_, err = tm.GetAccessToken(ctx, "user-1", IntegrationOneDrive)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refreshes.WithLabelValues("success")))

	_, err = tm.StartAuthorization(ctx, "user-1", IntegrationOneDrive, "https://x")
	require.NoError(t, err)
	_, err = tm.CompleteAuthorization(ctx, CallbackParams{SessionID: "unknown", Code: "abc"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.authorizations.WithLabelValues("started", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.authorizations.WithLabelValues("completed", "session_not_found")))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.cacheLookup(true)
	m.refresh(nil, time.Second.Seconds())
	m.authorization("started", nil)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "transient", outcome(ErrTransient))
	assert.Equal(t, "requires_reauth", outcome(ErrRequiresReauth))
	assert.Equal(t, "provider_error", outcome(&AuthorizationError{Code: "access_denied"}))
	assert.Equal(t, "contract_error", outcome(ErrProviderContract))
}
