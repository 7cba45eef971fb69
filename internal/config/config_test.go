package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRIAGE_ENV", "test")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.SeedDemoData)
	assert.True(t, cfg.SweepEnabled())
	assert.False(t, cfg.MQTT.Enabled())
	assert.False(t, cfg.OTel.Enabled())
	assert.Equal(t, "triage/events", cfg.MQTT.Topic)
	assert.Empty(t, cfg.DB.DSN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRIAGE_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/triage")
	t.Setenv("HEARTBEAT_INTERVAL", "5s")
	t.Setenv("SLA_SWEEP_INTERVAL", "0")
	t.Setenv("SEED_DEMO_DATA", "false")
	t.Setenv("NODE_ID", "42")
	t.Setenv("MQTT_BROKER", "localhost:1883")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/triage", cfg.DB.DSN)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.False(t, cfg.SweepEnabled())
	assert.False(t, cfg.SeedDemoData)
	assert.Equal(t, int64(42), cfg.NodeID)
	assert.True(t, cfg.MQTT.Enabled())
	assert.True(t, cfg.OTel.Enabled())
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("TRIAGE_ENV", "test")
	t.Setenv("HEARTBEAT_INTERVAL", "soon")
	t.Setenv("SEED_DEMO_DATA", "maybe")
	t.Setenv("NODE_ID", "x")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.True(t, cfg.SeedDemoData)
	assert.Equal(t, int64(1), cfg.NodeID)
}
