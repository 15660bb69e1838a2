// ABOUTME: Tests for the Prometheus collectors and scrape handler
// ABOUTME: Uses testutil to read counter values and httptest to scrape

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fieldbook/internal/auth"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.ObserveGate(auth.GateAuthenticated)
	m.ObserveGate(auth.GateAuthenticated)
	m.ObserveGate(auth.GateExpired)
	m.ObserveRegistration(auth.OutcomeConflict)
	m.ObserveLogin(auth.OutcomeInvalid)
	m.ObserveLogin(auth.OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues(auth.GateAuthenticated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues(auth.GateExpired)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues(auth.GateMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues(auth.OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(auth.OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(auth.OutcomeSuccess)))
}

func TestObserveRateLimited(t *testing.T) {
	m := New()
	m.ObserveRateLimited("/auth/login")
	m.ObserveRateLimited("/auth/login")
	m.ObserveRateLimited("/auth/register")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("/auth/login")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("/auth/register")))
}

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodGet, "/plots/{plotID}", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/plots/{plotID}", http.StatusNotFound, time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/plots/{plotID}", http.StatusOK, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/plots/{plotID}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/plots/{plotID}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveLogin(auth.OutcomeSuccess)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	if !strings.Contains(text, "# HELP") {
		t.Error("expected Prometheus format with HELP comments")
	}
	if !strings.Contains(text, `fieldbook_logins_total{outcome="success"} 1`) {
		t.Error("expected login counter in output")
	}
	if !strings.Contains(text, "go_") {
		t.Error("expected go_* metrics")
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Each instance owns its registry, so creating two must not panic on
	// duplicate registration.
	a := New()
	b := New()
	a.ObserveLogin(auth.OutcomeSuccess)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Logins.WithLabelValues(auth.OutcomeSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Logins.WithLabelValues(auth.OutcomeSuccess)))
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestRegistry_GathersFieldbookMetrics(t *testing.T) {
	m := New()
	m.ObserveLogin(auth.OutcomeSuccess)
	m.ObserveLogin(auth.OutcomeInvalid)
	m.ObserveRegistration(auth.OutcomeSuccess)

	count, err := testutil.GatherAndCount(m.Registry(), "fieldbook_logins_total", "fieldbook_registrations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "two login series and one registration series")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var sawGoRuntime bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "go_") {
			sawGoRuntime = true
			break
		}
	}
	assert.True(t, sawGoRuntime, "Go runtime collector should be registered")
}
