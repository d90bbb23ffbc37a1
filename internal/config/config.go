package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"table-backup/internal/auth"
	"table-backup/internal/backup"
	"table-backup/internal/database"
	"table-backup/internal/errors"
	"table-backup/internal/export"
	"table-backup/internal/logging"
)

const redacted = "********"

// Config is the complete configuration of one backup run. It is built once by
// the command layer and passed explicitly to every component.
type Config struct {
	Database database.DatabaseConfig `mapstructure:"database" yaml:"database"`
	Export   export.Config           `mapstructure:"export" yaml:"export"`
	OAuth    auth.Config             `mapstructure:"oauth" yaml:"oauth"`
	OneDrive backup.OneDriveConfig   `mapstructure:"onedrive" yaml:"onedrive"`
	Mirrors  backup.MirrorsConfig    `mapstructure:"mirrors" yaml:"mirrors"`
	Notify   backup.NotifyConfig     `mapstructure:"notify" yaml:"notify"`
	Log      logging.Config          `mapstructure:"log" yaml:"log"`
}

// SetDefaults sets default values on every section
func (c *Config) SetDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = driverFromDSN(c.Database.DSN)
	}
	c.Database.SetDefaults()
	c.Export.SetDefaults()
	c.OAuth.SetDefaults()
	c.OneDrive.SetDefaults()
	c.Mirrors.SetDefaults()
	c.Notify.SetDefaults()
	if c.Log.Level == "" {
		c.Log.Level = logging.LogLevelNormal
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// driverFromDSN infers the driver from a URL-style DSN such as DATABASE_URL
func driverFromDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return database.DriverPostgres
	case strings.HasPrefix(dsn, "file:"):
		return database.DriverSQLite
	default:
		return ""
	}
}

// ResolveSecrets reads the values the configuration only names, currently the
// artifact encryption passphrase.
func (c *Config) ResolveSecrets(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if c.Export.Encryption.Enabled && c.Export.Encryption.KeyEnvVar != "" {
		if value, ok := lookup(c.Export.Encryption.KeyEnvVar); ok {
			c.Export.Encryption.Passphrase = value
		}
	}
}

// Validate checks every section and reports all problems at once as a
// configuration error. It runs before any database or network call.
func (c *Config) Validate() error {
	var problems []string

	if err := c.Database.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Export.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.OAuth.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.OneDrive.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.OAuth.Grant == auth.GrantClientCredentials && c.OneDrive.User == "" {
		// Application tokens have no /me drive
		problems = append(problems, "onedrive.user is required for the client_credentials grant")
	}
	if err := c.Mirrors.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := logging.ParseLevel(string(c.Log.Level)); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format %q, must be text or json", c.Log.Format))
	}

	if len(problems) == 0 {
		return nil
	}

	appErr := errors.NewConfigurationError("configuration is incomplete or invalid",
		fmt.Errorf("%s", strings.Join(problems, "; "))).
		WithUserMessage("Missing or invalid configuration:\n  - " + strings.Join(problems, "\n  - "))
	if missing := c.OAuth.Missing(); len(missing) > 0 {
		appErr = appErr.WithContext("missing", missing)
	}
	return appErr
}

// Redacted returns a copy with every secret masked
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}

	c.Database.Password = mask(c.Database.Password)
	c.Database.DSN = mask(c.Database.DSN)
	c.OAuth.RefreshToken = mask(c.OAuth.RefreshToken)
	c.OAuth.ClientSecret = mask(c.OAuth.ClientSecret)
	c.Notify.WebhookURL = mask(c.Notify.WebhookURL)
	c.Notify.TeamsWebhookURL = mask(c.Notify.TeamsWebhookURL)

	if c.Mirrors.S3 != nil {
		s3 := *c.Mirrors.S3
		s3.AccessKey = mask(s3.AccessKey)
		s3.SecretKey = mask(s3.SecretKey)
		c.Mirrors.S3 = &s3
	}
	if c.Mirrors.GCS != nil {
		gcs := *c.Mirrors.GCS
		c.Mirrors.GCS = &gcs
	}
	if c.Mirrors.Azure != nil {
		azure := *c.Mirrors.Azure
		azure.AccountKey = mask(azure.AccountKey)
		c.Mirrors.Azure = &azure
	}
	if c.Mirrors.Local != nil {
		local := *c.Mirrors.Local
		c.Mirrors.Local = &local
	}
	c.Export.Queries = append([]export.Query(nil), c.Export.Queries...)
	c.OAuth.Scopes = append([]string(nil), c.OAuth.Scopes...)
	return c
}

// YAML renders the configuration as YAML
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return data, nil
}
