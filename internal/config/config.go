// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the ledger daemon.
type Config struct {
	MetricsAddr string
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Scheduler   SchedulerConfig
	Notifier    NotifierConfig
}

type PostgresConfig struct {
	// DSN empty means the in-memory store is used instead.
	DSN string
}

type KafkaConfig struct {
	// Brokers empty disables event publishing.
	Brokers []string
}

type SchedulerConfig struct {
	PaymentInterval  time.Duration
	IncomeInterval   time.Duration
	TaskInterval     time.Duration
	ReminderInterval time.Duration
	CleanupInterval  time.Duration
}

type NotifierConfig struct {
	Workers int
}

// Load reads the configuration, first from an optional .env file and then
// from the process environment. Every field has a working default so the
// daemon starts with no configuration at all.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// .env is optional.
		_ = godotenv.Load()
	}

	paymentInterval, err := parseDurationEnv("SCHEDULER_PAYMENT_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	incomeInterval, err := parseDurationEnv("SCHEDULER_INCOME_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	taskInterval, err := parseDurationEnv("SCHEDULER_TASK_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	reminderInterval, err := parseDurationEnv("SCHEDULER_REMINDER_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	cleanupInterval, err := parseDurationEnv("SCHEDULER_CLEANUP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	workers, err := parseIntEnv("NOTIFIER_WORKERS", 3)
	if err != nil {
		return nil, err
	}

	return &Config{
		MetricsAddr: getEnvOrDefault("METRICS_ADDR", ":9090"),
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers: splitBrokers(os.Getenv("KAFKA_BROKERS")),
		},
		Scheduler: SchedulerConfig{
			PaymentInterval:  paymentInterval,
			IncomeInterval:   incomeInterval,
			TaskInterval:     taskInterval,
			ReminderInterval: reminderInterval,
			CleanupInterval:  cleanupInterval,
		},
		Notifier: NotifierConfig{
			Workers: workers,
		},
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %s", key, value)
	}
	return parsed, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func splitBrokers(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
