// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides metadata-store connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RecordsDatabaseConfig provides the records application's backing-store settings.
type RecordsDatabaseConfig interface {
	GetRecordsDatabaseURL() string
}

// DriverConfig provides settings for the records-application automation bridge.
type DriverConfig interface {
	GetDriverBaseURL() string
	GetDriverTimeout() time.Duration
	GetRecordsUsername() string
	GetRecordsPassword() string
}

// AttachmentsConfig provides settings for the form-attachment download transport.
type AttachmentsConfig interface {
	GetFormsAPIKey() string
	GetDownloadInterval() time.Duration
}

// StagingConfig provides settings for the local artifact staging area.
type StagingConfig interface {
	GetStagingDir() string
}

// AlertConfig provides settings for operator failure alerts.
type AlertConfig interface {
	GetAlertEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
}

// SchedulerConfig provides settings for the batch dispatch queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// HTTPConfig provides settings for the operational HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	RecordsDatabaseURL string
	MigrateOnStart     bool
	DriverBaseURL      string
	DriverTimeout      time.Duration
	RecordsUsername    string
	RecordsPassword    string
	FormsAPIKey        string
	DownloadInterval   time.Duration
	StagingDir         string
	AlertEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	AlertFromAddress   string
	AlertToAddress     string
	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RecordsDatabaseConfig implementation
func (c *Config) GetRecordsDatabaseURL() string { return c.RecordsDatabaseURL }

// DriverConfig implementation
func (c *Config) GetDriverBaseURL() string        { return c.DriverBaseURL }
func (c *Config) GetDriverTimeout() time.Duration { return c.DriverTimeout }
func (c *Config) GetRecordsUsername() string      { return c.RecordsUsername }
func (c *Config) GetRecordsPassword() string      { return c.RecordsPassword }

// AttachmentsConfig implementation
func (c *Config) GetFormsAPIKey() string             { return c.FormsAPIKey }
func (c *Config) GetDownloadInterval() time.Duration { return c.DownloadInterval }

// StagingConfig implementation
func (c *Config) GetStagingDir() string { return c.StagingDir }

// AlertConfig implementation
func (c *Config) GetAlertEnabled() bool      { return c.AlertEnabled }
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetAlertFromAddress() string { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string   { return c.AlertToAddress }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string { return c.HTTPAddr }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	alertEnabled := strings.EqualFold(getEnv("ALERT_ENABLED", "false"), "true")

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RecordsDatabaseURL: getEnv("RECORDS_DATABASE_URL", ""),
		MigrateOnStart:     strings.EqualFold(getEnv("MIGRATE_ON_START", "false"), "true"),
		DriverBaseURL:      getEnv("DRIVER_BASE_URL", ""),
		DriverTimeout:      mustDuration(getEnv("DRIVER_TIMEOUT", "120s")),
		RecordsUsername:    getEnv("RECORDS_USERNAME", ""),
		RecordsPassword:    getEnv("RECORDS_PASSWORD", ""),
		FormsAPIKey:        getEnv("FORMS_API_KEY", ""),
		DownloadInterval:   mustDuration(getEnv("DOWNLOAD_INTERVAL", "300ms")),
		StagingDir:         getEnv("STAGING_DIR", os.TempDir()),
		AlertEnabled:       alertEnabled,
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		AlertFromAddress:   getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:     getEnv("ALERT_TO_ADDRESS", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE_NAME", "journalize"),
		AsynqConcurrency:   mustInt(getEnv("ASYNQ_CONCURRENCY", "1")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RecordsDatabaseURL == "" {
		return nil, fmt.Errorf("RECORDS_DATABASE_URL is required")
	}
	if cfg.DriverBaseURL == "" {
		return nil, fmt.Errorf("DRIVER_BASE_URL is required")
	}
	if cfg.RecordsUsername == "" || cfg.RecordsPassword == "" {
		return nil, fmt.Errorf("RECORDS_USERNAME and RECORDS_PASSWORD are required")
	}
	if alertEnabled && (cfg.SMTPHost == "" || cfg.AlertFromAddress == "" || cfg.AlertToAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST, ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when ALERT_ENABLED is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}
