package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RefreshAttempt()
	c.RefreshAttempt()
	c.RefreshResult(OutcomeSuccess)
	c.RefreshResult(OutcomeFailure)
	c.RefreshResult(OutcomeFailure)
	c.UnauthorizedRetry()
	c.GateRedirect("expired")
	c.Request("GET", 200, 15*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(c.refreshAttempts))
	require.Equal(t, 1.0, testutil.ToFloat64(c.refreshResults.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(c.refreshResults.WithLabelValues(OutcomeFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.unauthorizedRetry))
	require.Equal(t, 1.0, testutil.ToFloat64(c.gateRedirects.WithLabelValues("expired")))
	require.Equal(t, 1, testutil.CollectAndCount(c.requestDuration))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RefreshAttempt()
	path := filepath.Join(t.TempDir(), "courierdash.prom")

	err := WriteTextfile(path, reg)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "courierdash_refresh_attempts_total 1")
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}

	require.NotPanics(t, func() {
		r.RefreshAttempt()
		r.RefreshResult(OutcomeNoToken)
		r.UnauthorizedRetry()
		r.GateRedirect("anonymous")
		r.Request("POST", 0, time.Second)
	})
}
