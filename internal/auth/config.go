package auth

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// Grant selects how an access token is obtained
type Grant string

const (
	// GrantRefreshToken exchanges a stored refresh secret for a delegated-user token
	GrantRefreshToken Grant = "refresh_token"
	// GrantClientCredentials uses the application's own client secret
	GrantClientCredentials Grant = "client_credentials"
)

const (
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultRedirectURL   = "http://localhost:5000"

	// ScopeFilesReadWrite is the delegated scope used for uploads
	ScopeFilesReadWrite = "Files.ReadWrite.All"
	// ScopeGraphDefault requests every application permission granted to the app
	ScopeGraphDefault = "https://graph.microsoft.com/.default"
)

// Config holds the OAuth2 client settings
type Config struct {
	Grant            Grant         `mapstructure:"grant" yaml:"grant"`
	ClientID         string        `mapstructure:"client_id" yaml:"client_id"`
	TenantID         string        `mapstructure:"tenant_id" yaml:"tenant_id"`
	RefreshToken     string        `mapstructure:"refresh_token" yaml:"refresh_token"`
	RefreshTokenFile string        `mapstructure:"refresh_token_file" yaml:"refresh_token_file"`
	ClientSecret     string        `mapstructure:"client_secret" yaml:"client_secret"`
	Scopes           []string      `mapstructure:"scopes" yaml:"scopes"`
	AuthorityHost    string        `mapstructure:"authority_host" yaml:"authority_host"`
	RedirectURL      string        `mapstructure:"redirect_url" yaml:"redirect_url"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults fills unset fields with the Azure AD v2 defaults for the grant
func (c *Config) SetDefaults() {
	if c.Grant == "" {
		c.Grant = GrantRefreshToken
	}
	if c.AuthorityHost == "" {
		c.AuthorityHost = DefaultAuthorityHost
	}
	c.AuthorityHost = strings.TrimRight(c.AuthorityHost, "/")
	if c.RedirectURL == "" {
		c.RedirectURL = DefaultRedirectURL
	}
	if len(c.Scopes) == 0 {
		if c.Grant == GrantClientCredentials {
			c.Scopes = []string{ScopeGraphDefault}
		} else {
			c.Scopes = []string{ScopeFilesReadWrite}
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Missing returns the names of required settings that are empty
func (c *Config) Missing() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "oauth.client_id")
	}
	if c.TenantID == "" {
		missing = append(missing, "oauth.tenant_id")
	}
	switch c.Grant {
	case GrantClientCredentials:
		if c.ClientSecret == "" {
			missing = append(missing, "oauth.client_secret")
		}
	default:
		if c.RefreshToken == "" && c.RefreshTokenFile == "" {
			missing = append(missing, "oauth.refresh_token or oauth.refresh_token_file")
		}
	}
	return missing
}

// Validate checks the grant is known and every required value is present
func (c *Config) Validate() error {
	var errs []string
	switch c.Grant {
	case GrantRefreshToken, GrantClientCredentials:
	default:
		errs = append(errs, fmt.Sprintf("unsupported grant %q, must be refresh_token or client_credentials", c.Grant))
	}
	for _, m := range c.Missing() {
		errs = append(errs, m+" is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("oauth configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Endpoint returns the tenant's authorize and token endpoints
func (c *Config) Endpoint() oauth2.Endpoint {
	if c.AuthorityHost == DefaultAuthorityHost {
		endpoint := microsoft.AzureADEndpoint(c.TenantID)
		endpoint.AuthStyle = oauth2.AuthStyleInParams
		return endpoint
	}
	base := c.AuthorityHost + "/" + c.TenantID + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:   base + "/authorize",
		TokenURL:  base + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
