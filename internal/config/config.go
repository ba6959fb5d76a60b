package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// MongoDB Configuration
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Batch Runner Configuration
	RunnerWorkers   int
	RunnerQueueSize int
	ProbesPerSecond float64

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// Notification Configuration
	WebhookTimeout time.Duration
	SMTPAddr       string
	SMTPFrom       string
	SMTPUser       string
	SMTPPassword   string

	// Auth Configuration
	APIKeys string // comma-separated; empty disables auth

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Scheduler Configuration
	SchedulerEnabled      bool
	SchedulerTickInterval time.Duration
	SchedulerLockTTL      time.Duration
	SchedulerConcurrency  int
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// MongoDB
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/domainwatch?authSource=admin"),
		MongoDatabase: getEnv("MONGO_DATABASE", "domainwatch"),
		MongoTimeout:  getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,

		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,

		// Batch Runner
		RunnerWorkers:   getIntEnv("RUNNER_WORKERS", 10),
		RunnerQueueSize: getIntEnv("RUNNER_QUEUE_SIZE", 100),
		ProbesPerSecond: getFloatEnv("PROBES_PER_SECOND", 50),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Notifications
		WebhookTimeout: getDurationEnv("WEBHOOK_TIMEOUT_SEC", 10) * time.Second,
		SMTPAddr:       getEnv("SMTP_ADDR", ""),
		SMTPFrom:       getEnv("SMTP_FROM", "alerts@domainwatch.local"),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),

		// Auth
		APIKeys: getEnv("API_KEYS", ""),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, PUT, DELETE, OPTIONS, PATCH"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),

		// Scheduler
		SchedulerEnabled:      getBoolEnv("SCHEDULER_ENABLED", true),
		SchedulerTickInterval: getDurationEnv("SCHEDULER_TICK_INTERVAL_SEC", 60) * time.Second,
		SchedulerLockTTL:      getDurationEnv("SCHEDULER_LOCK_TTL_SEC", 300) * time.Second,
		SchedulerConcurrency:  getIntEnv("SCHEDULER_CONCURRENCY", 10),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Printf("Warning: Invalid float value for %s, using default %g", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
