package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "firo_access", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "firo-access-server", cfg.MQTT.ClientID)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	assert.Equal(t, "access/events", cfg.Access.Topics.Events)
	assert.Equal(t, "access/requests", cfg.Access.Topics.Requests)
	assert.Equal(t, "access/status", cfg.Access.Topics.Status)
	assert.Equal(t, "access/commands", cfg.Access.Topics.Commands)
	assert.Equal(t, "access/responses", cfg.Access.Topics.Responses)

	assert.Equal(t, 60, cfg.Access.Scheduler.PollInterval)
	assert.Equal(t, 4, cfg.Access.Scenario.Workers)
	assert.Equal(t, 10, cfg.Access.Scenario.WebhookTimeout)

	assert.True(t, cfg.Access.Stream.Enabled)
	assert.Equal(t, "access:events:stream", cfg.Access.Stream.Name)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	os.Clearenv()

	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("DB_PORT", "15432")
	os.Setenv("MQTT_BROKER", "tcp://broker.internal:1883")
	os.Setenv("SCHEDULER_POLL_INTERVAL", "30")
	os.Setenv("EVENT_STREAM_ENABLED", "false")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 15432, cfg.Database.Port)
	assert.Equal(t, "tcp://broker.internal:1883", cfg.MQTT.Broker)
	assert.Equal(t, 30, cfg.Access.Scheduler.PollInterval)
	assert.False(t, cfg.Access.Stream.Enabled)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	os.Clearenv()

	os.Setenv("DB_PORT", "not-a-number")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "firo_access",
		SSLMode:  "disable",
	}

	dsn := cfg.GetDSN()
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=firo_access sslmode=disable", dsn)
}
