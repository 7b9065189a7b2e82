package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewClient(reg)
	require.NoError(t, err)

	c.Observe("session.login", OutcomeOK, 10*time.Millisecond)
	c.Observe("session.login", OutcomeOK, 20*time.Millisecond)
	c.Observe("files.list", OutcomeTransportError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("session.login", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("files.list", OutcomeTransportError)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestClient_ObserveNil(t *testing.T) {
	var c *Client
	assert.NotPanics(t, func() { c.Observe("x", OutcomeOK, 0) })
}

func TestNewClient_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewClient(reg)
	require.NoError(t, err)

	_, err = NewClient(reg)
	assert.Error(t, err)
}

func TestOutcomeFor(t *testing.T) {
	assert.Equal(t, OutcomeOK, OutcomeFor(200, nil))
	assert.Equal(t, OutcomeOK, OutcomeFor(302, nil))
	assert.Equal(t, OutcomeClientError, OutcomeFor(401, nil))
	assert.Equal(t, OutcomeServerError, OutcomeFor(503, nil))
	assert.Equal(t, OutcomeTransportError, OutcomeFor(0, errors.New("dial")))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewClient(reg)
	require.NoError(t, err)
	c.Observe("files.stats", OutcomeOK, time.Millisecond)

	path := filepath.Join(t.TempDir(), "dnavault.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dnavault_client_requests_total{operation="files.stats",outcome="ok"} 1`)
}
