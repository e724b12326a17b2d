package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FEED_LATENCY_CONFIG", "FEED_LATENCY_SYMBOL", "FEED_LATENCY_DURATION",
		"FEED_LATENCY_OUTPUT_DIR", "LOG_LEVEL", "METRICS_ADDR", "PROXY_HOST", "PROXY_PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "BTC", c.Symbol)
	assert.Equal(t, 30*time.Second, c.Duration())
	assert.Equal(t, 5*time.Second, c.ReceiveTimeout())
	assert.Equal(t, 10*time.Second, c.LookupTimeout())
	assert.Equal(t, 50, c.ProgressEvery)
	assert.Equal(t, "", c.ProxyURL())
	assert.NoError(t, c.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol: ETH
duration_seconds: 60
output_dir: /tmp/latency
receive_timeout_seconds: 2
proxy:
  host: 127.0.0.1
  port: 15236
feeds:
  extended:
    url: ws://localhost:1/{symbol}
  lighter:
    rest_url: http://localhost:2
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ETH", c.Symbol)
	assert.Equal(t, 60, c.DurationSeconds)
	assert.Equal(t, "/tmp/latency", c.OutputDir)
	assert.Equal(t, 2*time.Second, c.ReceiveTimeout())
	assert.Equal(t, 10*time.Second, c.LookupTimeout())
	assert.Equal(t, "http://127.0.0.1:15236", c.ProxyURL())
	assert.Equal(t, "ws://localhost:1/{symbol}", c.Feeds.ExtendedURL)
	assert.Equal(t, "", c.Feeds.LighterURL)
	assert.Equal(t, "http://localhost:2", c.Feeds.LighterRESTURL)

	t.Setenv("FEED_LATENCY_SYMBOL", "SOL")
	t.Setenv("FEED_LATENCY_DURATION", "15")
	t.Setenv("FEED_LATENCY_CONFIG", path)
	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "SOL", c.Symbol)
	assert.Equal(t, 15, c.DurationSeconds)
}

func TestLoad_JSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"symbol":"DOGE","metrics_addr":":9100"}`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DOGE", c.Symbol)
	assert.Equal(t, ":9100", c.MetricsAddr)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "feed.toml")
	require.NoError(t, os.WriteFile(bad, []byte("symbol = 'x'"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"空交易对", func(c *Config) { c.Symbol = " " }},
		{"时长为 0", func(c *Config) { c.DurationSeconds = 0 }},
		{"时长为负", func(c *Config) { c.DurationSeconds = -1 }},
		{"接收超时为 0", func(c *Config) { c.ReceiveTimeoutSeconds = 0 }},
		{"查询超时为 0", func(c *Config) { c.LookupTimeoutSeconds = 0 }},
		{"进度间隔为 0", func(c *Config) { c.ProgressEvery = 0 }},
		{"代理端口无效", func(c *Config) { c.Proxy = &ProxyConfig{Host: "127.0.0.1"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
