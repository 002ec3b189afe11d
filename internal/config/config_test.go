package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"FINDINGS_STORE_URI", "MONGO_URI", "FINDINGS_DATABASE", "MS_PORT", "ALLOWED_REGIONS",
		"SCAN_INTERVAL", "SCAN_WORKERS", "SCAN_RESOURCE_TIMEOUT", "EVENT_QUEUE_SIZE",
		"EVENT_WORKERS", "KAFKA_BROKERS", "KAFKA_TOPIC", "NATS_URL", "NATS_SUBJECT",
		"EVENT_DEBOUNCE_WINDOW", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "memory://", c.StoreURI)
	assert.Equal(t, "clousec_prod", c.Database)
	assert.Equal(t, "5000", c.Port)
	assert.Empty(t, c.AllowedRegions)
	assert.Equal(t, 15*time.Minute, c.ScanInterval)
	assert.Equal(t, 8, c.ScanWorkers)
	assert.Equal(t, 30*time.Second, c.ResourceTimeout)
	assert.Equal(t, 256, c.EventQueueSize)
	assert.Equal(t, 4, c.EventWorkers)
	assert.Equal(t, "cloud-events", c.KafkaTopic)
	assert.Equal(t, "clousec.events", c.NatsSubject)
	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.KafkaEnabled())
	assert.False(t, c.NatsEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FINDINGS_STORE_URI", "")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("ALLOWED_REGIONS", "us-east-1, eu-west-1,,")
	t.Setenv("SCAN_INTERVAL", "0")
	t.Setenv("SCAN_WORKERS", "2")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", c.StoreURI)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, c.AllowedRegions)
	assert.Zero(t, c.ScanInterval)
	assert.Equal(t, 2, c.ScanWorkers)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, c.KafkaBrokers)
	assert.True(t, c.KafkaEnabled())
	assert.True(t, c.NatsEnabled())
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("SCAN_RESOURCE_TIMEOUT", "soon")
	t.Setenv("EVENT_WORKERS", "0")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCAN_RESOURCE_TIMEOUT")
	assert.Contains(t, err.Error(), "EVENT_WORKERS must be at least 1")
}
