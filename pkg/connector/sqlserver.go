// pkg/connector/sqlserver.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/config"
)

// SQLServerConnector implements the DatabaseConnector interface for SQL Server
type SQLServerConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.SQLServerConfig
}

// NewSQLServerConnector creates and initializes a new SQL Server connector
func NewSQLServerConnector(ctx context.Context, cfg *config.SQLServerConfig) (*SQLServerConnector, error) {
	logger := zap.L().Named("sqlserver-connector")

	// Log connection attempt (without credentials)
	logger.Info("Connecting to SQL Server",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQL Server connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Verify connection
	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQL Server: %w", err)
	}

	// Lock waits should not outlive the query timeout
	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("SET LOCK_TIMEOUT %d", cfg.QueryTimeout.Milliseconds()),
		)
		if err != nil {
			logger.Warn("Failed to set lock timeout", zap.Error(err))
		}
	}

	connector := &SQLServerConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	LogConnectionStats(logger, cfg.Database, db)
	return connector, nil
}

// DB returns the underlying database connection
func (c *SQLServerConnector) DB() *sql.DB {
	return c.db
}

// DriverName identifies the sql driver for query rebinding
func (c *SQLServerConnector) DriverName() string {
	return "sqlserver"
}

// Validate verifies the SQL Server connection and that the expected
// database is selected
func (c *SQLServerConnector) Validate() error {
	var version string
	err := c.db.QueryRow("SELECT @@VERSION").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to query SQL Server version: %w", err)
	}
	c.logger.Info("Connected to SQL Server", zap.String("version", version))

	var database string
	if err := c.db.QueryRow("SELECT DB_NAME()").Scan(&database); err != nil {
		return fmt.Errorf("failed to verify current database: %w", err)
	}
	if database != c.cfg.Database {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, c.cfg.Database)
	}

	c.logger.Info("SQL Server connection validated",
		zap.String("database", c.cfg.Database),
		zap.String("host", c.cfg.Host),
		zap.Int("port", c.cfg.Port))

	return nil
}

// Close closes the database connection
func (c *SQLServerConnector) Close() error {
	c.logger.Info("Closing SQL Server connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// ExecWithTimeout executes a statement with a timeout
func (c *SQLServerConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}
