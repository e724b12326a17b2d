package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSample(t *testing.T) {
	before := testutil.ToFloat64(sampleTotal.WithLabelValues("metrics-test"))

	ObserveSample("metrics-test", 12.5)
	ObserveSample("metrics-test", 7.25)

	assert.Equal(t, before+2, testutil.ToFloat64(sampleTotal.WithLabelValues("metrics-test")))
	assert.Equal(t, 7.25, testutil.ToFloat64(lastLatency.WithLabelValues("metrics-test")))
	assert.Equal(t, "2", Samples.Get("metrics-test").String())
}

func TestWindowStatsAndScore(t *testing.T) {
	SetWindowStats("metrics-test-2", 11, 3.25)
	SetScore("metrics-test-2", 4)

	assert.Equal(t, 11.0, testutil.ToFloat64(medianLatency.WithLabelValues("metrics-test-2")))
	assert.Equal(t, 3.25, testutil.ToFloat64(jitterMean.WithLabelValues("metrics-test-2")))
	assert.Equal(t, 4.0, testutil.ToFloat64(feedScore.WithLabelValues("metrics-test-2")))
}

func TestStartAsync_ServesEndpoints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	IncKeepalive("metrics-test-3")
	srv, err := StartAsync(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	for _, path := range []string{"/debug/vars", "/metrics"} {
		resp, err := http.Get("http://" + srv.Addr + path)
		require.NoError(t, err, path)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		if path == "/debug/vars" {
			assert.True(t, strings.Contains(string(body), "feed_keepalives"))
		}
	}
}
