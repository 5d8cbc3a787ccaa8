// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the database (always absolute)
	Port      int
	LogLevel  string
	LogPretty bool
	DevMode   bool

	// DefaultTimezone is the IANA zone used when the stored timer settings carry
	// no timezone (or an invalid one), and as CRON_TZ for the extra-hours job.
	DefaultTimezone string

	// TimerPolicyFile is an optional YAML file seeding the timer settings defaults.
	TimerPolicyFile string

	InactivityThreshold     time.Duration
	InactivitySweepInterval time.Duration
	ExtraHoursSchedule      string // cron spec with seconds field
	MaintenanceSchedule     string

	Backup *BackupConfig
}

// BackupConfig holds the object storage backup configuration
type BackupConfig struct {
	Enabled         bool
	Schedule        string
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // S3-compatible endpoint (R2, MinIO); empty means AWS
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int // 0 keeps every backup
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("WORKTIME_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                 absDataDir,
		Port:                    getEnvAsInt("PORT", 8080),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogPretty:               getEnvAsBool("LOG_PRETTY", true),
		DevMode:                 getEnvAsBool("DEV_MODE", false),
		DefaultTimezone:         getEnv("DEFAULT_TIMEZONE", "Europe/Madrid"),
		TimerPolicyFile:         getEnv("TIMER_POLICY_FILE", ""),
		InactivityThreshold:     getEnvAsDuration("INACTIVITY_THRESHOLD", 30*time.Minute),
		InactivitySweepInterval: getEnvAsDuration("INACTIVITY_SWEEP_INTERVAL", 5*time.Minute),
		ExtraHoursSchedule:      getEnv("EXTRA_HOURS_SCHEDULE", "0 0 8 * * MON-FRI"),
		MaintenanceSchedule:     getEnv("MAINTENANCE_SCHEDULE", "0 0 2 * * *"),
		Backup:                  loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the path of the tracking database inside DataDir
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "worktime.db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.InactivityThreshold <= 0 {
		return fmt.Errorf("INACTIVITY_THRESHOLD must be positive, got %s", c.InactivityThreshold)
	}
	if c.InactivitySweepInterval <= 0 || c.InactivitySweepInterval > c.InactivityThreshold/2 {
		return fmt.Errorf("INACTIVITY_SWEEP_INTERVAL must be positive and at most half of INACTIVITY_THRESHOLD (%s), got %s",
			c.InactivityThreshold, c.InactivitySweepInterval)
	}
	if c.ExtraHoursSchedule == "" {
		return fmt.Errorf("EXTRA_HOURS_SCHEDULE is required")
	}
	if c.Backup != nil && c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET is required when backups are enabled")
	}
	return nil
}

// Helper functions
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
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadBackupConfig loads object storage backup settings
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // 03:00 daily
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		Prefix:          getEnv("BACKUP_S3_PREFIX", "worktime"),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 90),
	}
}
