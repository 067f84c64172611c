package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Backend de almacenamiento principal: "sqlite", "postgres" o "mongo".
	StorageBackend string
	SQLitePath     string
	PostgresDSN    string
	MongoURI       string
	MongoDatabase  string

	RedisAddr    string
	UseKafka     bool
	KafkaBrokers []string
	KafkaTopic   string

	ClickHouseAddr     string
	ClickHouseDatabase string

	WorkflowConfigPath string

	DefaultPageSize int
	MaxPageSize     int

	CacheTTL     time.Duration
	OutboxPeriod time.Duration
	OutboxLimit  int
	HTTPPort     string
}

func LoadConfig() *Config {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}
	getEnvInt := func(key string, fallback int) int {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return fallback
	}

	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	return &Config{
		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "./flowlab.db"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "flowlab"),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		UseKafka:     getEnv("USE_KAFKA", "") == "true",
		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   getEnv("KAFKA_TOPIC", "execution-events"),

		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "flowlab"),

		WorkflowConfigPath: getEnv("WORKFLOW_CONFIG", ""),

		DefaultPageSize: getEnvInt("DEFAULT_PAGE_SIZE", 25),
		MaxPageSize:     getEnvInt("MAX_PAGE_SIZE", 100),

		CacheTTL:     5 * time.Minute,
		OutboxPeriod: 1 * time.Second,
		OutboxLimit:  10,
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
	}
}
