// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Statement timeout
	StatementTimeout time.Duration
}

// SQLServerConfig holds SQL Server connection parameters
type SQLServerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Encrypt  string // disable, false or true

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Per-query timeout
	QueryTimeout time.Duration
}

// LoadPostgresConfig loads PostgreSQL configuration from environment variables
func LoadPostgresConfig() (*PostgresConfig, error) {
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return nil, errors.New("POSTGRES_USER environment variable is required")
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		return nil, errors.New("POSTGRES_PASSWORD environment variable is required")
	}

	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		return nil, errors.New("POSTGRES_DB environment variable is required")
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnvAsInt("POSTGRES_PORT", 5432)

	cfg := &PostgresConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: database,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxOpenConns:     getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		ConnMaxIdleTime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second,
		StatementTimeout: time.Duration(getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}

// LoadSQLServerConfig loads SQL Server configuration from environment variables
func LoadSQLServerConfig() (*SQLServerConfig, error) {
	password := os.Getenv("SQLSERVER_PASSWORD")
	if password == "" {
		return nil, errors.New("SQLSERVER_PASSWORD environment variable is required")
	}

	database := os.Getenv("SQLSERVER_DB")
	if database == "" {
		return nil, errors.New("SQLSERVER_DB environment variable is required")
	}

	cfg := &SQLServerConfig{
		Host:     getEnv("SQLSERVER_HOST", "localhost"),
		Port:     getEnvAsInt("SQLSERVER_PORT", 1433),
		User:     getEnv("SQLSERVER_USER", "SA"),
		Password: password,
		Database: database,
		Encrypt:  getEnv("SQLSERVER_ENCRYPT", "disable"),

		MaxOpenConns:    getEnvAsInt("SQLSERVER_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("SQLSERVER_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: time.Duration(getEnvAsInt("SQLSERVER_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvAsInt("SQLSERVER_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second,
		QueryTimeout:    time.Duration(getEnvAsInt("SQLSERVER_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// ConnectionString returns a sqlserver:// URL for the go-mssqldb driver.
// url.URL handles escaping of passwords with reserved characters.
func (c *SQLServerConfig) ConnectionString() string {
	query := url.Values{}
	query.Set("database", c.Database)
	query.Set("encrypt", c.Encrypt)

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
