package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Store  StoreConfig
	Server ServerConfig
	Watch  WatchConfig
	Queue  QueueConfig
}

// StoreConfig holds database-related configuration
type StoreConfig struct {
	Path string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// WatchConfig holds folder-watcher configuration
type WatchConfig struct {
	Folder      string
	Debounce    time.Duration
	InitialScan bool
}

// QueueConfig holds worker-pool configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: getEnv("DB_PATH", "pdf_data.db"),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
		},
		Watch: WatchConfig{
			Folder:      getEnv("PDF_FOLDER", "pdfs"),
			Debounce:    getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			InitialScan: getEnvAsBool("WATCH_INITIAL_SCAN", true),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
			MaxAttempts:    getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			RetryBackoff:   getEnvAsDuration("QUEUE_RETRY_BACKOFF", time.Minute),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return NewAppError("CONFIG_ERROR", "DB_PATH is required", ErrValidation)
	}
	if c.Watch.Folder == "" {
		return NewAppError("CONFIG_ERROR", "PDF_FOLDER is required", ErrValidation)
	}
	if c.Queue.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "QUEUE_MAX_ATTEMPTS must be >= 1", ErrValidation)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
