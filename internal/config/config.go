package config

import (
	"os"
	"strconv"
)

// Config holds the service configuration, sourced from environment
// variables with defaults.
type Config struct {
	HTTPAddr        string
	NATSURL         string
	PolicyPath      string
	LogLevel        string
	SnapshotSubject string
	ResultSubject   string
	FindingSubject  string
	QueueGroup      string
	ShutdownTimeout int
}

// Load reads the configuration from the environment. An empty
// SKYWATCH_NATS_URL disables the NATS subscriber; the HTTP API always runs.
func Load() *Config {
	return &Config{
		HTTPAddr:        getEnv("SKYWATCH_HTTP_ADDR", ":8080"),
		NATSURL:         getEnv("SKYWATCH_NATS_URL", ""),
		PolicyPath:      getEnv("SKYWATCH_POLICY_PATH", "policies.json"),
		LogLevel:        getEnv("SKYWATCH_LOG_LEVEL", "info"),
		SnapshotSubject: getEnv("SKYWATCH_SNAPSHOT_SUBJECT", "snapshots.normalized"),
		ResultSubject:   getEnv("SKYWATCH_RESULT_SUBJECT", "policy.results"),
		FindingSubject:  getEnv("SKYWATCH_FINDING_SUBJECT", "policy.findings"),
		QueueGroup:      getEnv("SKYWATCH_QUEUE_GROUP", "policy-engine"),
		ShutdownTimeout: getEnvInt("SKYWATCH_SHUTDOWN_TIMEOUT_SEC", 30),
	}
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
