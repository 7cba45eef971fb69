package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/EdgeAdaptics/triage/internal/store"
)

type Config struct {
	Env               string
	Port              string
	DB                store.Config
	SLAPolicyPath     string
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	SeedDemoData      bool
	NodeID            int64
	MQTT              MQTTConfig
	OTel              OTelConfig
}

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Load reads configuration from the environment. In development a .env file
// in the working directory is loaded first when present.
func Load() Config {
	if getEnv("TRIAGE_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	return Config{
		Env:  getEnv("TRIAGE_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: store.Config{
			DSN: getEnv("DATABASE_URL", ""),
		},
		SLAPolicyPath:     getEnv("SLA_POLICY_PATH", ""),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		SweepInterval:     getEnvDuration("SLA_SWEEP_INTERVAL", time.Minute),
		SeedDemoData:      getEnvBool("SEED_DEMO_DATA", true),
		NodeID:            int64(getEnvInt("NODE_ID", 1)),
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			Topic:    getEnv("MQTT_TOPIC", "triage/events"),
			ClientID: getEnv("MQTT_CLIENT_ID", "triage-api"),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "triage-api"),
			ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SweepEnabled reports whether the SLA sweeper should run.
func (c Config) SweepEnabled() bool {
	return c.SweepInterval > 0
}

func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
