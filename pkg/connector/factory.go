// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Create builds the connector for the configured driver
func (f *ConnectorFactory) Create(ctx context.Context) (DatabaseConnector, error) {
	switch f.cfg.Driver {
	case config.DriverPostgres:
		return f.CreatePostgresConnector(ctx)
	case config.DriverSQLServer:
		return f.CreateSQLServerConnector(ctx)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.cfg.Driver)
	}
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// CreateSQLServerConnector creates a new SQL Server connector
func (f *ConnectorFactory) CreateSQLServerConnector(ctx context.Context) (*SQLServerConnector, error) {
	f.logger.Info("Creating SQL Server connector")

	connector, err := NewSQLServerConnector(ctx, f.cfg.SQLServer)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQL Server connector: %w", err)
	}

	return connector, nil
}
