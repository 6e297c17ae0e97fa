// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Supported destination drivers.
const (
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
)

// Config represents the application configuration
type Config struct {
	// Destination database. Driver selects which of the two configs is
	// populated; the other stays nil.
	Driver    string
	Postgres  *PostgresConfig
	SQLServer *SQLServerConfig

	// Source extract
	SourcePath      string
	SourceDelimiter string // single character, default ","
	CatalogSeedPath string

	// Pipeline settings
	BatchSize        int
	ProgressInterval int   // rows between progress log lines
	MinBusinessID    int64 // sanity floor for canonical business IDs
	MinCanonicalRows int   // canonical rows at or above which load stages are skipped

	// Connection bootstrap
	ConnectTimeout       time.Duration
	ConnectRetryInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics push (optional, disabled when the URL is empty)
	PushgatewayURL string
	MetricsJobName string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Driver: getEnv("DB_DRIVER", DriverPostgres),

		SourcePath:      getEnv("SOURCE_CSV_PATH", "data/taxpayers.csv"),
		SourceDelimiter: getEnv("SOURCE_DELIMITER", ","),
		CatalogSeedPath: getEnv("CATALOG_SEED_PATH", "config/catalogs.yaml"),

		BatchSize:        getEnvAsInt("BATCH_SIZE", 500),
		ProgressInterval: getEnvAsInt("PROGRESS_INTERVAL", 10000),
		MinBusinessID:    getEnvAsInt64("MIN_BUSINESS_ID", 10000),
		MinCanonicalRows: getEnvAsInt("MIN_CANONICAL_ROWS", 100),

		ConnectTimeout:       time.Duration(getEnvAsInt("CONNECT_TIMEOUT_SECONDS", 120)) * time.Second,
		ConnectRetryInterval: time.Duration(getEnvAsInt("CONNECT_RETRY_INTERVAL_SECONDS", 5)) * time.Second,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
		MetricsJobName: getEnv("METRICS_JOB_NAME", "taxpayer-ingress"),
	}

	// Load the database configuration for the selected driver
	switch cfg.Driver {
	case DriverPostgres:
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	case DriverSQLServer:
		msConfig, err := LoadSQLServerConfig()
		if err != nil {
			return nil, errors.New("failed to load SQL Server configuration: " + err.Error())
		}
		cfg.SQLServer = msConfig
	default:
		return nil, errors.New("unsupported DB_DRIVER: " + cfg.Driver)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Postgres == nil {
			return errors.New("postgreSQL configuration is required")
		}
	case DriverSQLServer:
		if c.SQLServer == nil {
			return errors.New("SQL Server configuration is required")
		}
	default:
		return errors.New("unsupported driver: " + c.Driver)
	}

	if c.SourcePath == "" {
		return errors.New("source extract path is required")
	}

	if len([]rune(c.SourceDelimiter)) != 1 {
		return errors.New("source delimiter must be a single character")
	}

	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	if c.ProgressInterval <= 0 {
		return errors.New("progress interval must be positive")
	}

	if c.MinCanonicalRows < 0 {
		return errors.New("minimum canonical row threshold cannot be negative")
	}

	if c.ConnectTimeout <= 0 {
		return errors.New("connect timeout must be positive")
	}

	if c.ConnectRetryInterval <= 0 {
		return errors.New("connect retry interval must be positive")
	}

	return nil
}

// Delimiter returns the source field delimiter as a rune.
func (c *Config) Delimiter() rune {
	return []rune(c.SourceDelimiter)[0]
}

// QueryTimeout returns the per-query timeout configured for the selected
// driver. Non-positive values fall back to the 300s default so stores never
// run with an already-expired context.
func (c *Config) QueryTimeout() time.Duration {
	var t time.Duration
	switch c.Driver {
	case DriverSQLServer:
		if c.SQLServer != nil {
			t = c.SQLServer.QueryTimeout
		}
	case DriverPostgres:
		if c.Postgres != nil {
			t = c.Postgres.StatementTimeout
		}
	}
	if t <= 0 {
		return 300 * time.Second
	}
	return t
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
