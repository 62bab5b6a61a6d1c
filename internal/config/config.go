// Package config загружает конфигурацию сервиса из окружения и .env файла
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr    string `mapstructure:"SERVER_ADDR"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	WorkerCount   int    `mapstructure:"WORKER_COUNT"`
	BufferSize    int    `mapstructure:"BUFFER_SIZE"`
	HistoryLimit  int64  `mapstructure:"HISTORY_LIMIT"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTTopic    string `mapstructure:"MQTT_TOPIC"`

	KafkaBrokers    []string
	KafkaAlertTopic string `mapstructure:"KAFKA_ALERT_TOPIC"`

	OfflineSweepCron string `mapstructure:"OFFLINE_SWEEP_CRON"`
	InsightsCron     string `mapstructure:"INSIGHTS_CRON"`

	ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"SERVER_ADDR":        ":8080",
	"REDIS_ADDR":         "localhost:6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"WORKER_COUNT":       runtime.NumCPU(),
	"BUFFER_SIZE":        1000,
	"HISTORY_LIMIT":      500,
	"LOG_LEVEL":          "info",
	"MQTT_BROKER":        "",
	"MQTT_CLIENT_ID":     "healthytag-service",
	"MQTT_TOPIC":         "devices/+/telemetry",
	"KAFKA_BROKERS":      "",
	"KAFKA_ALERT_TOPIC":  "device-alerts",
	"OFFLINE_SWEEP_CRON": "@every 5m",
	"INSIGHTS_CRON":      "@every 1h",
	"READ_TIMEOUT":       15 * time.Second,
	"WRITE_TIMEOUT":      15 * time.Second,
	"IDLE_TIMEOUT":       60 * time.Second,
}

// Load читает .env (если он есть) и переменные окружения
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, без которых сервис не стартует
func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE must be positive, got %d", c.BufferSize)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

// MQTTEnabled включен ли прием телеметрии по MQTT
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// KafkaEnabled включена ли публикация оповещений в Kafka
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
