package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "evtelemetry/backend/libs/config"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const defaultPort = "8084"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Port         string        `yaml:"port" env:"TELEMETRY_HTTP_PORT"`
	QueryTimeout time.Duration `yaml:"queryTimeout" env:"TELEMETRY_QUERY_TIMEOUT"`
}

// StorageConfig selects the durable store.
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"TELEMETRY_STORAGE_DRIVER"`
	DSN         string `yaml:"dsn" env:"TELEMETRY_POSTGRES_DSN"`
	AutoMigrate bool   `yaml:"autoMigrate" env:"TELEMETRY_DB_AUTO_MIGRATE"`
	MaxOpenConn int    `yaml:"maxOpenConns" env:"TELEMETRY_DB_MAX_OPEN_CONNS"`
}

// RedisConfig enables the latest-state mirror when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"TELEMETRY_REDIS_ADDR"`
	Password string        `yaml:"password" env:"TELEMETRY_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"TELEMETRY_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"TELEMETRY_REDIS_TTL"`
}

// AuthConfig guards administrative endpoints when Secret is set.
type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"TELEMETRY_ADMIN_JWT_SECRET"`
	TokenTTL time.Duration `yaml:"tokenTtl" env:"TELEMETRY_ADMIN_TOKEN_TTL"`
}

// KafkaConfig enables the Kafka consumer when Brokers is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"TELEMETRY_KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" env:"TELEMETRY_KAFKA_TOPIC"`
	GroupID string   `yaml:"groupId" env:"TELEMETRY_KAFKA_GROUP_ID"`
}

// MQTTConfig enables the MQTT subscriber when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"TELEMETRY_MQTT_BROKER"`
	Topic    string `yaml:"topic" env:"TELEMETRY_MQTT_TOPIC"`
	ClientID string `yaml:"clientId" env:"TELEMETRY_MQTT_CLIENT_ID"`
}

// WebSocketConfig tunes device streams.
type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"pingInterval" env:"TELEMETRY_WS_PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"TELEMETRY_WS_WRITE_TIMEOUT"`
}

// Config defines telemetry service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// Default returns the configuration used before file and environment overrides.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:         defaultPort,
			QueryTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:      DriverPostgres,
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:   "telemetry.samples",
			GroupID: "telemetry-service",
		},
		MQTT: MQTTConfig{
			Topic:    "telemetry/+/samples",
			ClientID: "telemetry-service",
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load configuration using shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	if c.KafkaEnabled() && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("config: kafka topic required when brokers are set")
	}
	if c.MQTTEnabled() && strings.TrimSpace(c.MQTT.Topic) == "" {
		return errors.New("config: mqtt topic required when broker is set")
	}
	if c.Redis.DB < 0 {
		return errors.New("config: redis db must not be negative")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// QueryTimeout bounds a single API call against storage.
func (c *Config) QueryTimeout() time.Duration {
	if c.HTTP.QueryTimeout <= 0 {
		return 5 * time.Second
	}
	return c.HTTP.QueryTimeout
}

func (c *Config) RedisEnabled() bool { return strings.TrimSpace(c.Redis.Addr) != "" }
func (c *Config) AuthEnabled() bool  { return c.Auth.Secret != "" }
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }
func (c *Config) MQTTEnabled() bool  { return strings.TrimSpace(c.MQTT.Broker) != "" }
