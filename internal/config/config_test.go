package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != ":8080" {
		t.Errorf("Expected :8080, got %s", cfg.ServerAddr)
	}
	if cfg.BufferSize != 1000 || cfg.HistoryLimit != 500 {
		t.Errorf("Unexpected buffer/history: %d/%d", cfg.BufferSize, cfg.HistoryLimit)
	}
	if cfg.MQTTTopic != "devices/+/telemetry" || cfg.KafkaAlertTopic != "device-alerts" {
		t.Errorf("Unexpected topics: %s/%s", cfg.MQTTTopic, cfg.KafkaAlertTopic)
	}
	if cfg.OfflineSweepCron != "@every 5m" {
		t.Errorf("Expected @every 5m, got %s", cfg.OfflineSweepCron)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Errorf("Expected 15s read timeout, got %v", cfg.ReadTimeout)
	}
	if cfg.MQTTEnabled() || cfg.KafkaEnabled() {
		t.Error("MQTT and Kafka must be disabled by default")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("WRITE_TIMEOUT", "30s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != ":9090" || cfg.RedisDB != 3 || cfg.WorkerCount != 8 {
		t.Errorf("Unexpected values: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("Expected 2 brokers, got %v", cfg.KafkaBrokers)
	}
	if !cfg.MQTTEnabled() || !cfg.KafkaEnabled() {
		t.Error("Expected MQTT and Kafka to be enabled")
	}
	if cfg.WriteTimeout != 30*time.Second {
		t.Errorf("Expected 30s write timeout, got %v", cfg.WriteTimeout)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=debug\nHISTORY_LIMIT=200\n"), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("HISTORY_LIMIT")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.HistoryLimit != 200 {
		t.Errorf("Expected values from env file, got %s/%d", cfg.LogLevel, cfg.HistoryLimit)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("BUFFER_SIZE", "0")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Expected validation error for zero buffer size")
	}
}
