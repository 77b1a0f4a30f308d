package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	IntakeEventsTopic string

	// Prediction service
	PredictionBaseURL      string
	PredictionTimeout      time.Duration
	PredictionRetries      int
	PredictionTokenURL     string
	PredictionClientID     string
	PredictionClientSecret string

	// Extraction
	AliasFile        string
	MaxDocumentPages int

	// Gateway
	RateLimitPerMinute int
	TrustedProxies     []string
	AuditEnabled       bool
	AuditRetention     time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 60*time.Second),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 10*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "neurotrace"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "neurotrace"),
		PostgresDB:       getEnv("POSTGRES_DB", "intake"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "intake-audit"),
		IntakeEventsTopic: getEnv("INTAKE_EVENTS_TOPIC", "intake-events"),

		PredictionBaseURL:      getEnv("PREDICTION_BASE_URL", "http://localhost:9000"),
		PredictionTimeout:      getDuration("PREDICTION_TIMEOUT", 30*time.Second),
		PredictionRetries:      getIntEnv("PREDICTION_RETRIES", 2),
		PredictionTokenURL:     getEnv("PREDICTION_TOKEN_URL", ""),
		PredictionClientID:     getEnv("PREDICTION_CLIENT_ID", ""),
		PredictionClientSecret: getEnv("PREDICTION_CLIENT_SECRET", ""),

		AliasFile:        getEnv("ALIAS_FILE", ""),
		MaxDocumentPages: getIntEnv("MAX_DOCUMENT_PAGES", 50),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getStringSliceEnv("TRUSTED_PROXIES", nil),
		AuditEnabled:       getBoolEnv("AUDIT_ENABLED", true),
		AuditRetention:     getDuration("AUDIT_RETENTION", 90*24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated list, dropping empty entries.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
