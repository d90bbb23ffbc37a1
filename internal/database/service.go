package database

import (
	"context"
	"database/sql"
	"time"

	"table-backup/internal/errors"
	"table-backup/internal/logging"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// OpenFunc opens a database handle; sql.Open by default
type OpenFunc func(driverName, dataSourceName string) (*sql.DB, error)

// Service acquires and releases the connection used by one export stage
type Service struct {
	config DatabaseConfig
	logger *logging.Logger
	open   OpenFunc
}

// NewService creates a new database service for the given configuration
func NewService(config DatabaseConfig, logger *logging.Logger) *Service {
	config.SetDefaults()
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Service{
		config: config,
		logger: logger,
		open:   sql.Open,
	}
}

// NewServiceWithOpener creates a service that opens handles through fn
func NewServiceWithOpener(config DatabaseConfig, logger *logging.Logger, fn OpenFunc) *Service {
	s := NewService(config, logger)
	s.open = fn
	return s
}

// Connect opens the database and verifies it with a ping. There is no retry.
func (s *Service) Connect(ctx context.Context) (*sql.DB, error) {
	startTime := time.Now()
	host, name := s.config.Target()

	db, err := s.connect(ctx)

	s.logger.LogDatabaseConnection(s.config.Driver, host, name, time.Since(startTime), err)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (s *Service) connect(ctx context.Context) (*sql.DB, error) {
	if err := s.config.Validate(); err != nil {
		return nil, errors.NewConfigurationError("invalid database configuration", err)
	}

	db, err := s.open(s.config.Driver, s.config.DataSourceName())
	if err != nil {
		return nil, errors.NewDatabaseError("failed to open database connection", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := s.TestConnection(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// TestConnection verifies that the database connection is working
func (s *Service) TestConnection(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.NewDatabaseError("database connection is nil", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return errors.NewDatabaseError("failed to ping database", err)
	}

	s.logger.Debug("Database connection test successful")
	return nil
}

// Close gracefully closes the database connection
func (s *Service) Close(db *sql.DB) error {
	if db == nil {
		s.logger.Debug("Database connection is nil, nothing to close")
		return nil
	}

	s.logger.Debug("Closing database connection")
	if err := db.Close(); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to close database connection")
		return errors.NewDatabaseError("failed to close database connection", err)
	}

	s.logger.Debug("Database connection closed successfully")
	return nil
}

// Config returns the effective configuration after defaults
func (s *Service) Config() DatabaseConfig {
	return s.config
}
