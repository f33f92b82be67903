package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
environment: test
clickhouse:
  host: ch.local
evaluator:
  horizon: 5
similarity:
  indicators:
    - name: rsi_14
      weight: 1
    - name: bias_20
      weight: 5
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 15*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, "quant_db", c.ClickHouse.Database)
	assert.Equal(t, 5, c.Evaluator.Horizon)
	assert.Equal(t, 10, c.Evaluator.Quantiles)
	assert.Equal(t, "alphalab.jobs", c.Kafka.JobsTopic)
	require.Len(t, c.Similarity.Indicators, 2)
	assert.Equal(t, 5.0, c.Similarity.Indicators[1].Weight)
}

func TestParseDefaultIndicators(t *testing.T) {
	c, err := Parse([]byte("environment: test\nclickhouse:\n  host: x\n"))
	require.NoError(t, err)
	require.Len(t, c.Similarity.Indicators, 3)
	assert.Equal(t, "cci_14", c.Similarity.Indicators[2].Name)
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	env := map[string]string{
		"CLICKHOUSE_HOST":    "ch.prod",
		"KAFKA_BROKERS":      "k1:9092,k2:9092",
		"REDIS_ADDR":         "redis:6379",
		"LOG_LEVEL":          "debug",
		"CORS_ALLOW_ORIGINS": "https://lab.example.com, https://ops.example.com",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "ch.prod", c.ClickHouse.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, []string{"https://lab.example.com", "https://ops.example.com"}, c.Server.CORS.AllowOrigins)
	assert.True(t, c.Server.CORS.Enabled)
	assert.Equal(t, 10*time.Minute, c.Server.CORS.MaxAge)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing host", func(c *Config) { c.ClickHouse.Host = "" }},
		{"bad horizon", func(c *Config) { c.Evaluator.Horizon = 0 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"digest without kafka", func(c *Config) { c.Log.Digest.Enabled = true }},
		{"zero weight", func(c *Config) { c.Similarity.Indicators[0].Weight = 0 }},
		{"unknown jobs backend", func(c *Config) { c.Jobs.Backend = "sqs" }},
		{"redis jobs without redis", func(c *Config) { c.Jobs.Backend = JobsRedis }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Parse([]byte(sample))
			require.NoError(t, err)
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ch.local", c.ClickHouse.Host)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestJobBackendResolvesAuto(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, JobsAuto, c.Jobs.Backend)
	assert.Equal(t, JobsNone, c.JobBackend())

	c.Redis.Enabled = true
	assert.Equal(t, JobsRedis, c.JobBackend())

	c.Kafka.Enabled = true
	assert.Equal(t, JobsKafka, c.JobBackend())

	c.Jobs.Backend = JobsNone
	assert.Equal(t, JobsNone, c.JobBackend())
}
