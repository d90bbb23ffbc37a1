package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Supported database/sql driver names
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DatabaseConfig holds the configuration parameters for database connection
type DatabaseConfig struct {
	Driver   string        `mapstructure:"driver" yaml:"driver"`
	DSN      string        `mapstructure:"dsn" yaml:"dsn"`
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Database string        `mapstructure:"database" yaml:"database"`
	SSLMode  string        `mapstructure:"sslmode" yaml:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults fills in the driver, port and timeout when unset
func (dc *DatabaseConfig) SetDefaults() {
	if dc.Driver == "" {
		dc.Driver = DriverMySQL
	}
	if dc.Port == 0 {
		switch dc.Driver {
		case DriverMySQL:
			dc.Port = 3306
		case DriverPostgres:
			dc.Port = 5432
		}
	}
	if dc.Timeout <= 0 {
		dc.Timeout = 30 * time.Second
	}
}

// Validate checks if the database configuration has all required parameters
func (dc *DatabaseConfig) Validate() error {
	var errs []error

	switch dc.Driver {
	case DriverMySQL, DriverPostgres:
		if dc.DSN != "" {
			break
		}
		if dc.Host == "" {
			errs = append(errs, errors.New("host is required"))
		}
		if dc.Port <= 0 || dc.Port > 65535 {
			errs = append(errs, errors.New("port must be between 1 and 65535"))
		}
		if dc.Username == "" {
			errs = append(errs, errors.New("username is required"))
		}
		if dc.Database == "" {
			errs = append(errs, errors.New("database name is required"))
		}
	case DriverSQLite:
		if dc.DSN == "" && dc.Database == "" {
			errs = append(errs, errors.New("database file path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q, must be one of: mysql, postgres, sqlite3", dc.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("database configuration validation failed: %v", errs)
	}

	return nil
}

// DataSourceName returns the driver-specific connection string
func (dc *DatabaseConfig) DataSourceName() string {
	if dc.DSN != "" {
		return dc.DSN
	}

	switch dc.Driver {
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(dc.Username, dc.Password),
			Host:   net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port)),
			Path:   "/" + dc.Database,
		}
		q := url.Values{}
		if dc.SSLMode != "" {
			q.Set("sslmode", dc.SSLMode)
		}
		if dc.Timeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(dc.Timeout.Seconds())))
		}
		u.RawQuery = q.Encode()
		return u.String()
	case DriverSQLite:
		return dc.Database
	default:
		cfg := mysql.NewConfig()
		cfg.User = dc.Username
		cfg.Passwd = dc.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
		cfg.DBName = dc.Database
		cfg.Timeout = dc.Timeout
		cfg.ParseTime = true
		return cfg.FormatDSN()
	}
}

// Target describes the database for logging without exposing credentials
func (dc *DatabaseConfig) Target() (host, database string) {
	if dc.DSN != "" {
		return "dsn", dc.Database
	}
	if dc.Driver == DriverSQLite {
		return "local", dc.Database
	}
	return dc.Host, dc.Database
}
