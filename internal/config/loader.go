package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"table-backup/internal/errors"
)

const (
	// EnvPrefix prefixes every environment variable read by the tool
	EnvPrefix = "TABLE_BACKUP"
	// DefaultConfigName is the config file searched for in . and $HOME
	DefaultConfigName = ".table-backup"
)

// aliases lists the additional environment variables honoured for a key, in
// order of preference after the prefixed name
var aliases = map[string][]string{
	"database.dsn":                 {"DATABASE_URL"},
	"oauth.client_id":              {"CLIENT_ID", "MS_CLIENT_ID"},
	"oauth.tenant_id":              {"TENANT_ID", "MS_TENANT_ID"},
	"oauth.refresh_token":          {"ONEDRIVE_REFRESH_TOKEN"},
	"oauth.client_secret":          {"MS_CLIENT_SECRET"},
	"mirrors.gcs.credentials_path": {"GOOGLE_APPLICATION_CREDENTIALS"},
}

// keys lists every scalar setting that can come from the environment
var keys = []string{
	"database.driver", "database.dsn", "database.host", "database.port",
	"database.username", "database.password", "database.database",
	"database.sslmode", "database.timeout",

	"export.directory", "export.format", "export.compression",
	"export.encryption.enabled", "export.encryption.key_env_var",

	"oauth.grant", "oauth.client_id", "oauth.tenant_id", "oauth.refresh_token",
	"oauth.refresh_token_file", "oauth.client_secret", "oauth.scopes",
	"oauth.authority_host", "oauth.redirect_url", "oauth.timeout",

	"onedrive.folder", "onedrive.graph_url", "onedrive.user", "onedrive.timeout",

	"mirrors.s3.bucket", "mirrors.s3.region", "mirrors.s3.prefix",
	"mirrors.s3.access_key", "mirrors.s3.secret_key", "mirrors.s3.endpoint",
	"mirrors.gcs.bucket", "mirrors.gcs.prefix", "mirrors.gcs.credentials_path",
	"mirrors.azure.account_name", "mirrors.azure.account_key",
	"mirrors.azure.container", "mirrors.azure.prefix", "mirrors.azure.service_url",
	"mirrors.local.directory",

	"notify.webhook_url", "notify.teams_webhook_url", "notify.only_on_failure",
	"notify.timeout",

	"log.level", "log.format", "log.file", "log.show_caller",
}

// EnvName returns the prefixed environment variable for a key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Setup configures v to read configPath, or .table-backup.yaml from the
// working directory or $HOME, and the environment.
func Setup(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range keys {
		names := append([]string{EnvName(key)}, aliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}
	return nil
}

// ReadFile reads the configured file. A missing file is only an error when
// it was named explicitly.
func ReadFile(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok && !explicit {
		return nil
	}
	return errors.NewConfigurationError("failed to read configuration file", err).
		WithContext("path", v.ConfigFileUsed())
}

// Load builds the configuration from v, applies defaults and resolves named
// secrets. It does not validate.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigurationError("failed to parse configuration", err)
	}
	dropEmptyMirrors(cfg)
	cfg.SetDefaults()
	cfg.ResolveSecrets(os.LookupEnv)
	return cfg, nil
}

// dropEmptyMirrors disables a mirror section that is present but blank, as
// happens when a YAML file carries an empty "s3:" key
func dropEmptyMirrors(cfg *Config) {
	if s3 := cfg.Mirrors.S3; s3 != nil && s3.Bucket == "" && s3.Endpoint == "" && s3.AccessKey == "" {
		cfg.Mirrors.S3 = nil
	}
	if gcs := cfg.Mirrors.GCS; gcs != nil && gcs.Bucket == "" {
		cfg.Mirrors.GCS = nil
	}
	if az := cfg.Mirrors.Azure; az != nil && az.AccountName == "" && az.Container == "" {
		cfg.Mirrors.Azure = nil
	}
	if local := cfg.Mirrors.Local; local != nil && local.Directory == "" {
		cfg.Mirrors.Local = nil
	}
}

// EnvironmentVariables lists every variable the tool reads
func EnvironmentVariables() []string {
	vars := make([]string, 0, len(keys)+8)
	for _, key := range keys {
		vars = append(vars, EnvName(key))
		vars = append(vars, aliases[key]...)
	}
	return vars
}
