package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Download scheduler configuration
	Scheduler SchedulerConfig

	// Clinical source system configuration
	Source SourceConfig

	// Aggregate data service configuration
	DHIS2 DHIS2Config

	// Periodic trigger configuration
	Trigger TriggerConfig

	// Mapping configuration
	Mapping MappingConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// SchedulerConfig holds download scheduler timings
type SchedulerConfig struct {
	IdleBackoff time.Duration
	JobDelay    time.Duration
	AutoStart   bool
}

// SourceConfig holds settings for the EMR report API
type SourceConfig struct {
	BaseURL   string
	Username  string
	Password  string
	Timeout   time.Duration
	ReportIDs []string
}

// DHIS2Config holds settings for the aggregate data service
type DHIS2Config struct {
	URL       string
	Username  string
	Password  string
	DataSetID string
	OrgUnitID string
	Timeout   time.Duration
}

// TriggerConfig holds the periodic trigger intervals
type TriggerConfig struct {
	Enabled         bool
	SyncInterval    time.Duration
	CollectInterval time.Duration
}

// MappingConfig holds mapping seed and resolver settings
type MappingConfig struct {
	File         string
	ResultColumn string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables, after loading a .env file if one exists
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "facility_sync"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Scheduler: SchedulerConfig{
			IdleBackoff: getDurationEnv("SCHEDULER_IDLE_BACKOFF", 5*time.Second),
			JobDelay:    getDurationEnv("SCHEDULER_JOB_DELAY", 1*time.Second),
			AutoStart:   getBoolEnv("SCHEDULER_AUTOSTART", true),
		},
		Source: SourceConfig{
			BaseURL:   getEnv("SOURCE_BASE_URL", ""),
			Username:  getEnv("SOURCE_USERNAME", ""),
			Password:  getEnv("SOURCE_PASSWORD", ""),
			Timeout:   getDurationEnv("SOURCE_TIMEOUT", 2*time.Minute),
			ReportIDs: getListEnv("SOURCE_REPORT_IDS"),
		},
		DHIS2: DHIS2Config{
			URL:       getEnv("DHIS2_URL", ""),
			Username:  getEnv("DHIS2_USERNAME", ""),
			Password:  getEnv("DHIS2_PASSWORD", ""),
			DataSetID: getEnv("DHIS2_DATASET_ID", ""),
			OrgUnitID: getEnv("DHIS2_ORG_UNIT_ID", ""),
			Timeout:   getDurationEnv("DHIS2_TIMEOUT", 35*time.Second),
		},
		Trigger: TriggerConfig{
			Enabled:         getBoolEnv("TRIGGER_ENABLED", true),
			SyncInterval:    getDurationEnv("SYNC_INTERVAL", 30*time.Minute),
			CollectInterval: getDurationEnv("COLLECT_INTERVAL", time.Hour),
		},
		Mapping: MappingConfig{
			File:         getEnv("MAPPINGS_FILE", ""),
			ResultColumn: getEnv("MAPPING_RESULT_COLUMN", "column2"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("SOURCE_BASE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.Source.BaseURL); err != nil {
		return fmt.Errorf("SOURCE_BASE_URL is invalid: %w", err)
	}
	if c.DHIS2.URL == "" {
		return fmt.Errorf("DHIS2_URL is required")
	}
	if _, err := url.ParseRequestURI(c.DHIS2.URL); err != nil {
		return fmt.Errorf("DHIS2_URL is invalid: %w", err)
	}
	if c.DHIS2.DataSetID == "" {
		return fmt.Errorf("DHIS2_DATASET_ID is required")
	}
	if c.DHIS2.OrgUnitID == "" {
		return fmt.Errorf("DHIS2_ORG_UNIT_ID is required")
	}
	if c.Scheduler.IdleBackoff <= 0 {
		return fmt.Errorf("SCHEDULER_IDLE_BACKOFF must be greater than 0")
	}
	if c.Scheduler.JobDelay < 0 {
		return fmt.Errorf("SCHEDULER_JOB_DELAY must not be negative")
	}
	if c.Trigger.Enabled && (c.Trigger.SyncInterval <= 0 || c.Trigger.CollectInterval <= 0) {
		return fmt.Errorf("SYNC_INTERVAL and COLLECT_INTERVAL must be greater than 0")
	}
	if strings.TrimSpace(c.Mapping.ResultColumn) == "" {
		return fmt.Errorf("MAPPING_RESULT_COLUMN must not be blank")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

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
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping blanks
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
