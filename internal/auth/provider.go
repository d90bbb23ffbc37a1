package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"table-backup/internal/errors"
	"table-backup/internal/logging"
)

// Token is a bearer access token held in memory for one run
type Token struct {
	AccessToken  string
	TokenType    string
	Expiry       time.Time
	RefreshToken string
}

// TokenProvider produces a bearer token for a fixed scope, or fails with the
// identity provider's reason. One request per call, no caching, no retry.
type TokenProvider struct {
	config     Config
	store      *RefreshStore
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTokenProvider creates a provider for the configured grant
func NewTokenProvider(config Config, logger *logging.Logger) *TokenProvider {
	config.SetDefaults()
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &TokenProvider{
		config:     config,
		store:      NewRefreshStore(config.RefreshToken, config.RefreshTokenFile),
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// WithHTTPClient replaces the client used for the token request
func (p *TokenProvider) WithHTTPClient(client *http.Client) *TokenProvider {
	p.httpClient = client
	return p
}

// Grant returns the configured grant variant
func (p *TokenProvider) Grant() Grant {
	return p.config.Grant
}

// Token requests a new access token
func (p *TokenProvider) Token(ctx context.Context) (*Token, error) {
	if err := p.config.Validate(); err != nil {
		p.logger.WithField("grant", string(p.config.Grant)).Error("OAuth configuration is incomplete")
		return nil, errors.NewConfigurationError("invalid oauth configuration", err)
	}

	cc, refreshToken, err := p.clientConfig()
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	startTime := time.Now()

	tok, err := cc.Token(ctx)
	duration := time.Since(startTime)
	if err != nil {
		appErr, code, description := tokenError("token request was rejected", err)
		p.logger.LogTokenRequest(string(p.config.Grant), duration, code, description, err)
		return nil, appErr
	}

	if tok.AccessToken == "" {
		err := errors.NewTokenError("token response has no access token", nil)
		p.logger.LogTokenRequest(string(p.config.Grant), duration, "", "", err)
		return nil, err
	}

	p.logger.LogTokenRequest(string(p.config.Grant), duration, "", "", nil)

	token := &Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
	}

	if p.config.Grant == GrantRefreshToken && tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		token.RefreshToken = tok.RefreshToken
		p.persistRotated(tok.RefreshToken)
	}

	return token, nil
}

// tokenError wraps a token endpoint failure, keeping the provider's error
// code and description when the endpoint returned them.
func tokenError(message string, err error) (*errors.AppError, string, string) {
	appErr := errors.NewTokenError(message, err)
	var retrieveErr *oauth2.RetrieveError
	if !stderrors.As(err, &retrieveErr) {
		return appErr, "", ""
	}
	appErr = appErr.
		WithContext("error", retrieveErr.ErrorCode).
		WithContext("error_description", retrieveErr.ErrorDescription)
	if retrieveErr.Response != nil {
		appErr = appErr.WithContext("status_code", retrieveErr.Response.StatusCode)
	}
	if retrieveErr.ErrorCode != "" {
		appErr = appErr.WithUserMessage(fmt.Sprintf("The identity provider rejected the credential: %s (%s)",
			retrieveErr.ErrorCode, retrieveErr.ErrorDescription))
	}
	return appErr, retrieveErr.ErrorCode, retrieveErr.ErrorDescription
}

// clientConfig builds the token request for the grant. The delegated variant
// reuses the client-credentials flow with the grant type overridden, so the
// configured scope is sent with the refresh secret.
func (p *TokenProvider) clientConfig() (*clientcredentials.Config, string, error) {
	endpoint := p.config.Endpoint()
	cc := &clientcredentials.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		TokenURL:     endpoint.TokenURL,
		Scopes:       p.config.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	if p.config.Grant != GrantRefreshToken {
		return cc, "", nil
	}

	refreshToken, err := p.store.Load()
	if err != nil {
		p.logger.WithField("grant", string(p.config.Grant)).Error("Refresh token is not available")
		return nil, "", err
	}
	cc.EndpointParams = map[string][]string{
		"grant_type":    {string(GrantRefreshToken)},
		"refresh_token": {refreshToken},
	}
	return cc, refreshToken, nil
}

func (p *TokenProvider) persistRotated(refreshToken string) {
	if !p.store.Persistent() {
		p.logger.Debug("Identity provider rotated the refresh token; no token file to update")
		return
	}
	if err := p.store.Save(refreshToken); err != nil {
		p.logger.WithField("path", p.store.Path()).Warnf("Failed to persist rotated refresh token: %v", err)
		return
	}
	p.logger.WithField("path", p.store.Path()).Debug("Persisted rotated refresh token")
}
