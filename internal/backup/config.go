package backup

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultGraphURL = "https://graph.microsoft.com/v1.0"
	DefaultFolder   = "Backups"
)

// OneDriveConfig configures the primary upload destination
type OneDriveConfig struct {
	Folder   string        `mapstructure:"folder" yaml:"folder"`
	GraphURL string        `mapstructure:"graph_url" yaml:"graph_url"`
	User     string        `mapstructure:"user" yaml:"user"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults sets default values for the OneDrive destination
func (oc *OneDriveConfig) SetDefaults() {
	if oc.Folder == "" {
		oc.Folder = DefaultFolder
	}
	if oc.GraphURL == "" {
		oc.GraphURL = DefaultGraphURL
	}
	oc.GraphURL = strings.TrimRight(oc.GraphURL, "/")
	if oc.Timeout <= 0 {
		oc.Timeout = 5 * time.Minute
	}
}

// Validate validates the OneDrive destination
func (oc *OneDriveConfig) Validate() error {
	if strings.Trim(oc.Folder, "/") == "" {
		return errors.New("onedrive folder cannot be empty")
	}
	u, err := url.Parse(oc.GraphURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid onedrive graph_url %q", oc.GraphURL)
	}
	return nil
}

// S3Config for an Amazon S3 (or S3-compatible) mirror
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
}

// SetDefaults sets default values for S3 storage configuration
func (s3c *S3Config) SetDefaults() {
	if s3c.Region == "" {
		s3c.Region = "us-east-1"
	}
}

// Validate validates S3 storage configuration
func (s3c *S3Config) Validate() error {
	if s3c.Bucket == "" {
		return errors.New("S3 bucket name is required")
	}
	if (s3c.AccessKey == "") != (s3c.SecretKey == "") {
		return errors.New("S3 access_key and secret_key must be set together")
	}
	return nil
}

// GCSConfig for a Google Cloud Storage mirror
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

// SetDefaults sets default values for GCS storage configuration
func (gc *GCSConfig) SetDefaults() {
	if gc.CredentialsPath == "" {
		gc.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

// Validate validates GCS storage configuration
func (gc *GCSConfig) Validate() error {
	if gc.Bucket == "" {
		return errors.New("GCS bucket name is required")
	}
	return nil
}

// AzureConfig for an Azure Blob Storage mirror
type AzureConfig struct {
	AccountName string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey  string `mapstructure:"account_key" yaml:"account_key"`
	Container   string `mapstructure:"container" yaml:"container"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix"`
	ServiceURL  string `mapstructure:"service_url" yaml:"service_url"`
}

// SetDefaults sets default values for Azure storage configuration
func (ac *AzureConfig) SetDefaults() {
	if ac.ServiceURL == "" && ac.AccountName != "" {
		ac.ServiceURL = fmt.Sprintf("https://%s.blob.core.windows.net", ac.AccountName)
	}
}

// Validate validates Azure storage configuration
func (ac *AzureConfig) Validate() error {
	var errs []error
	if ac.AccountName == "" {
		errs = append(errs, errors.New("Azure account name is required"))
	}
	if ac.AccountKey == "" {
		errs = append(errs, errors.New("Azure account key is required"))
	}
	if ac.Container == "" {
		errs = append(errs, errors.New("Azure container name is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("azure configuration validation failed: %v", errs)
	}
	return nil
}

// LocalConfig for a mirror on a mounted file system
type LocalConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// SetDefaults cleans the directory path
func (lc *LocalConfig) SetDefaults() {
	if lc.Directory != "" {
		lc.Directory = filepath.Clean(lc.Directory)
	}
}

// Validate validates local mirror configuration
func (lc *LocalConfig) Validate() error {
	if lc.Directory == "" {
		return errors.New("local mirror directory is required")
	}
	return nil
}

// MirrorsConfig lists the optional extra destinations. A nil entry is disabled.
type MirrorsConfig struct {
	S3    *S3Config    `mapstructure:"s3" yaml:"s3,omitempty"`
	GCS   *GCSConfig   `mapstructure:"gcs" yaml:"gcs,omitempty"`
	Azure *AzureConfig `mapstructure:"azure" yaml:"azure,omitempty"`
	Local *LocalConfig `mapstructure:"local" yaml:"local,omitempty"`
}

// SetDefaults sets defaults on every configured mirror
func (mc *MirrorsConfig) SetDefaults() {
	if mc.S3 != nil {
		mc.S3.SetDefaults()
	}
	if mc.GCS != nil {
		mc.GCS.SetDefaults()
	}
	if mc.Azure != nil {
		mc.Azure.SetDefaults()
	}
	if mc.Local != nil {
		mc.Local.SetDefaults()
	}
}

// Validate validates every configured mirror
func (mc *MirrorsConfig) Validate() error {
	var errs []error
	if mc.S3 != nil {
		if err := mc.S3.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if mc.GCS != nil {
		if err := mc.GCS.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if mc.Azure != nil {
		if err := mc.Azure.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if mc.Local != nil {
		if err := mc.Local.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("mirror configuration validation failed: %v", errs)
	}
	return nil
}

// NotifyConfig configures the run-summary notifications
type NotifyConfig struct {
	WebhookURL      string        `mapstructure:"webhook_url" yaml:"webhook_url"`
	TeamsWebhookURL string        `mapstructure:"teams_webhook_url" yaml:"teams_webhook_url"`
	OnlyOnFailure   bool          `mapstructure:"only_on_failure" yaml:"only_on_failure"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults sets default values for notifications
func (nc *NotifyConfig) SetDefaults() {
	if nc.Timeout <= 0 {
		nc.Timeout = 30 * time.Second
	}
}

// Enabled reports whether any channel is configured
func (nc *NotifyConfig) Enabled() bool {
	return nc.WebhookURL != "" || nc.TeamsWebhookURL != ""
}
