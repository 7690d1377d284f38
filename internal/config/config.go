package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 门禁服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 门禁服务特定配置
	Access struct {
		Topics struct {
			Events    string // 设备事件主题
			Requests  string // 门禁请求主题
			Status    string // 设备状态主题
			Commands  string // 下行命令主题
			Responses string // 门禁响应主题
		}

		// 排程配置
		Scheduler struct {
			PollInterval int // 轮询间隔（秒），默认 60秒
		}

		// 场景引擎配置
		Scenario struct {
			Workers        int // 动作执行 worker 数量，默认 4
			WebhookTimeout int // webhook 超时（秒），默认 10秒
		}

		// 事件流配置（镜像到 Redis Streams）
		Stream struct {
			Enabled bool
			Name    string // 流名称，如 "access:events:stream"
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "firo_access")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "firo-access-server")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// 门禁主题（固定主题集）
	cfg.Access.Topics.Events = getEnv("ACCESS_TOPIC_EVENTS", "access/events")
	cfg.Access.Topics.Requests = getEnv("ACCESS_TOPIC_REQUESTS", "access/requests")
	cfg.Access.Topics.Status = getEnv("ACCESS_TOPIC_STATUS", "access/status")
	cfg.Access.Topics.Commands = getEnv("ACCESS_TOPIC_COMMANDS", "access/commands")
	cfg.Access.Topics.Responses = getEnv("ACCESS_TOPIC_RESPONSES", "access/responses")

	cfg.Access.Scheduler.PollInterval = getEnvInt("SCHEDULER_POLL_INTERVAL", 60)

	cfg.Access.Scenario.Workers = getEnvInt("SCENARIO_WORKERS", 4)
	cfg.Access.Scenario.WebhookTimeout = getEnvInt("SCENARIO_WEBHOOK_TIMEOUT", 10)

	cfg.Access.Stream.Enabled = getEnv("EVENT_STREAM_ENABLED", "true") == "true"
	cfg.Access.Stream.Name = getEnv("EVENT_STREAM_NAME", "access:events:stream")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
