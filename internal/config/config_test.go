package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, 8081, cfg.Worker.Port)
	assert.Equal(t, 30*time.Second, cfg.Worker.ProcessTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "LOG_INGEST", cfg.Queue.Stream)
	assert.Equal(t, "logs.ingest", cfg.Queue.SubjectPrefix)
	assert.Equal(t, "LOG_DLQ", cfg.Queue.DLQStream)
	assert.Equal(t, "logs.dlq", cfg.Queue.DLQSubject)
	assert.Equal(t, "log-processor", cfg.Queue.Consumer)
	assert.Equal(t, 5, cfg.Queue.MaxDeliver)
	assert.Equal(t, 30*time.Second, cfg.Queue.AckWait)
	assert.Equal(t, 5*time.Second, cfg.Queue.NakDelay)
	assert.Equal(t, 100, cfg.Queue.MaxAckPending)
	assert.Equal(t, int64(1048576), cfg.Ingestion.MaxBodySize)
	assert.False(t, cfg.Ingestion.RateLimitEnabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
gateway:
  port: 9090
queue:
  stream: CUSTOM_INGEST
  max_deliver: 3
  ack_wait: 10s
ingestion:
  max_body_size: 2048
  rate_limit_enabled: true
  rate_limit_requests: 50
  rate_limit_window: 30s
logging:
  level: debug
  format: text
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Gateway.Port)
	assert.Equal(t, "CUSTOM_INGEST", cfg.Queue.Stream)
	assert.Equal(t, 3, cfg.Queue.MaxDeliver)
	assert.Equal(t, 10*time.Second, cfg.Queue.AckWait)
	assert.Equal(t, int64(2048), cfg.Ingestion.MaxBodySize)
	assert.True(t, cfg.Ingestion.RateLimitEnabled)
	assert.Equal(t, 50, cfg.Ingestion.RateLimitRequests)
	assert.Equal(t, 30*time.Second, cfg.Ingestion.RateLimitWindow)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, 8081, cfg.Worker.Port)
	assert.Equal(t, "logs.ingest", cfg.Queue.SubjectPrefix)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SCRUBLOG_GATEWAY_PORT", "7777")
	t.Setenv("SCRUBLOG_NATS_URL", "nats://broker:4222")
	t.Setenv("SCRUBLOG_QUEUE_MAX_DELIVER", "9")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Gateway.Port)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, 9, cfg.Queue.MaxDeliver)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
