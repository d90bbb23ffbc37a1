package export

import (
	"fmt"
	"regexp"
	"time"
)

// Format is the tabular file format an artifact is written in
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// CompressionType represents the compression applied to an artifact
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

var queryNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Query is one named read query; its name becomes the artifact file name
type Query struct {
	Name string `mapstructure:"name" yaml:"name"`
	SQL  string `mapstructure:"sql" yaml:"sql"`
}

// Validate checks the query has a file-safe name and a statement
func (q Query) Validate() error {
	if !queryNamePattern.MatchString(q.Name) {
		return fmt.Errorf("query name %q must match %s", q.Name, queryNamePattern.String())
	}
	if q.SQL == "" {
		return fmt.Errorf("query %q has no sql", q.Name)
	}
	return nil
}

// DefaultQueries returns the full-table snapshots taken when none are configured
func DefaultQueries() []Query {
	return []Query{
		{Name: "registros", SQL: "SELECT * FROM registros"},
		{Name: "demandas", SQL: "SELECT * FROM demandas"},
	}
}

// Artifact is a local file holding the snapshot of one query
type Artifact struct {
	Name     string        `json:"name"`
	FileName string        `json:"file_name"`
	Path     string        `json:"path"`
	Columns  []string      `json:"columns"`
	Rows     int64         `json:"rows"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
}

// EncryptionConfig enables passphrase-based artifact encryption
type EncryptionConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	KeyEnvVar string `mapstructure:"key_env_var" yaml:"key_env_var"`

	// Passphrase is resolved from KeyEnvVar when the configuration is built
	Passphrase string `mapstructure:"-" yaml:"-"`
}

// Config holds exporter settings
type Config struct {
	Directory   string           `mapstructure:"directory" yaml:"directory"`
	Format      Format           `mapstructure:"format" yaml:"format"`
	Compression CompressionType  `mapstructure:"compression" yaml:"compression"`
	Encryption  EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
	Queries     []Query          `mapstructure:"queries" yaml:"queries"`
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	if c.Directory == "" {
		c.Directory = "backup"
	}
	if c.Format == "" {
		c.Format = FormatCSV
	}
	if c.Compression == "" {
		c.Compression = CompressionTypeNone
	}
	if c.Encryption.KeyEnvVar == "" {
		c.Encryption.KeyEnvVar = "TABLE_BACKUP_ENCRYPTION_KEY"
	}
	if len(c.Queries) == 0 {
		c.Queries = DefaultQueries()
	}
}

// Validate checks the exporter settings
func (c *Config) Validate() error {
	var errs []error

	switch c.Format {
	case FormatCSV, FormatXLSX:
	default:
		errs = append(errs, fmt.Errorf("invalid export format %q, must be csv or xlsx", c.Format))
	}

	switch c.Compression {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
	default:
		errs = append(errs, fmt.Errorf("invalid compression %q, must be one of: none, gzip, lz4, zstd", c.Compression))
	}

	if c.Encryption.Enabled && c.Encryption.Passphrase == "" {
		errs = append(errs, fmt.Errorf("encryption is enabled but %s is not set", c.Encryption.KeyEnvVar))
	}

	if len(c.Queries) == 0 {
		errs = append(errs, fmt.Errorf("at least one query is required"))
	}
	seen := make(map[string]bool)
	for _, q := range c.Queries {
		if err := q.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[q.Name] {
			errs = append(errs, fmt.Errorf("duplicate query name %q", q.Name))
		}
		seen[q.Name] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("export configuration validation failed: %v", errs)
	}
	return nil
}
