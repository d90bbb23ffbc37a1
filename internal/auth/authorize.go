package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"table-backup/internal/errors"
)

// ScopeOfflineAccess asks the identity provider to issue a refresh token
const ScopeOfflineAccess = "offline_access"

// Authorizer runs the one-time authorization-code exchange that mints the
// refresh secret later read by TokenProvider.
type Authorizer struct {
	oauth      *oauth2.Config
	verifier   string
	state      string
	httpClient *http.Client
}

// NewAuthorizer creates an authorizer with a fresh PKCE verifier
func NewAuthorizer(config Config) (*Authorizer, error) {
	config.SetDefaults()
	if config.ClientID == "" {
		return nil, errors.NewConfigurationError("oauth.client_id is required", nil)
	}
	if config.TenantID == "" {
		config.TenantID = "common"
	}

	scopes := append([]string{}, config.Scopes...)
	if config.Grant == GrantClientCredentials {
		scopes = []string{ScopeFilesReadWrite}
	}
	hasOffline := false
	for _, s := range scopes {
		if s == ScopeOfflineAccess {
			hasOffline = true
		}
	}
	if !hasOffline {
		scopes = append(scopes, ScopeOfflineAccess)
	}

	return &Authorizer{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     config.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
		},
		verifier:   oauth2.GenerateVerifier(),
		state:      oauth2.GenerateVerifier()[:16],
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// WithHTTPClient replaces the client used for the code exchange
func (a *Authorizer) WithHTTPClient(client *http.Client) *Authorizer {
	a.httpClient = client
	return a
}

// AuthCodeURL returns the URL the user opens to sign in and consent
func (a *Authorizer) AuthCodeURL() string {
	return a.oauth.AuthCodeURL(a.state,
		oauth2.S256ChallengeOption(a.verifier),
		oauth2.SetAuthURLParam("response_mode", "query"),
	)
}

// RedirectURL returns the registered redirect the browser is sent back to
func (a *Authorizer) RedirectURL() string {
	return a.oauth.RedirectURL
}

// ParseRedirect extracts the authorization code from the URL the browser was
// redirected to. The URL must carry the state issued by AuthCodeURL.
func (a *Authorizer) ParseRedirect(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect url: %w", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", errors.NewTokenError("authorization was denied", nil).
			WithContext("error", e).
			WithContext("error_description", q.Get("error_description"))
	}
	switch state := q.Get("state"); {
	case state == "":
		return "", fmt.Errorf("no 'state' parameter found in the url; copy the full address after the redirect")
	case state != a.state:
		return "", fmt.Errorf("redirect url state does not match this authorization request")
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("no 'code' parameter found in the url; copy the full address after the redirect")
	}
	return code, nil
}

// Exchange trades the authorization code for tokens
func (a *Authorizer) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	tok, err := a.oauth.Exchange(ctx, code, oauth2.VerifierOption(a.verifier))
	if err != nil {
		appErr, _, _ := tokenError("authorization code exchange failed", err)
		return nil, appErr
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
		RefreshToken: tok.RefreshToken,
	}, nil
}
