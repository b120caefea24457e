package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANALYTICS_CONFIG_FILE", "")
	t.Setenv("METRICS_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, 1000, cfg.Limits.MaxProfiles)
	assert.Equal(t, 10000, cfg.Limits.MaxEvents)
	assert.Equal(t, 1000, cfg.Limits.MaxPathEvents)
	assert.Equal(t, "first_last", cfg.Session.Estimator)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analytics.yaml")
	content := []byte(`
timezone: Europe/Berlin
store:
  backend: mongo
limits:
  max_events: 250
  query_timeout: 3s
session:
  estimator: idle_gap
  idle_gap: 15m
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("ANALYTICS_CONFIG_FILE", path)
	t.Setenv("LIMIT_MAX_EVENTS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Store.Backend)
	assert.Equal(t, 500, cfg.Limits.MaxEvents)
	assert.Equal(t, 3*time.Second, cfg.Limits.QueryTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleGap)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("ANALYTICS_CONFIG_FILE", "")
	t.Setenv("ANALYTICS_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}

func TestSQLDSN(t *testing.T) {
	c := SQLConfig{Driver: "mysql", Host: "db", Port: "3306", Database: "lms", Username: "u", Password: "p"}
	assert.Equal(t, "u:p@tcp(db:3306)/lms?parseTime=true", c.DSN())

	c.Driver = "pgx"
	c.SSLMode = "disable"
	assert.Equal(t, "host=db port=3306 user=u password=p dbname=lms sslmode=disable", c.DSN())
}

func TestKafkaProducerSettings(t *testing.T) {
	k := KafkaConfig{
		Brokers:          []string{"b1:9092", "b2:9092"},
		ProducerRetries:  3,
		ProducerTimeout:  2 * time.Second,
		RequiredAcks:     -1,
		CompressionType:  "snappy",
		IdempotentWrites: true,
		MaxMessageBytes:  4096,
	}

	p := k.Producer("learning-events-tracked")
	assert.Equal(t, "learning-events-tracked", p.Topic)
	assert.Equal(t, k.Brokers, p.Brokers)
	assert.Equal(t, 3, p.Retries)
	assert.Equal(t, 2*time.Second, p.Timeout)
	assert.Equal(t, -1, p.RequiredAcks)
	assert.Equal(t, "snappy", p.Compression)
	assert.True(t, p.IdempotentWrites)
	assert.Equal(t, 4096, p.MaxMessageBytes)
}
