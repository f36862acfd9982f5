// Package tokens refreshes OAuth access tokens of connected accounts and caches them in Redis.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/jonboulle/clockwork"
)

const (
	GmailTokenURL   = "https://oauth2.googleapis.com/token"
	OutlookTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	OutlookScope    = "https://graph.microsoft.com/.default"

	defaultExpiresIn = time.Hour
)

var (
	ErrUnsupportedProvider = errors.New("provider does not use oauth tokens")
	ErrRefreshRejected     = errors.New("token refresh rejected")
)

// Endpoint is the token endpoint and client credentials of one OAuth provider.
type Endpoint struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Refresher exchanges refresh tokens at the provider's token endpoint.
type Refresher struct {
	endpoints map[models.AccountProvider]Endpoint
	client    *http.Client
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewRefresher(
	endpoints map[models.AccountProvider]Endpoint,
	client *http.Client,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Refresher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Refresher{
		endpoints: endpoints,
		client:    client,
		clock:     clock,
		logger:    logger.With("component", "token_refresher"),
	}
}

// RefreshToken returns nil, nil when the account has no refresh token; the owner has to
// reconnect it.
func (r *Refresher) RefreshToken(ctx context.Context, account *models.ConnectedAccount) (*models.Token, error) {
	if account.RefreshToken == "" {
		r.logger.Warn("No refresh token available", "account", account.EmailAddress)

		return nil, nil
	}

	endpoint, ok := r.endpoints[account.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, account.Provider)
	}

	form := url.Values{
		"client_id":     {endpoint.ClientID},
		"client_secret": {endpoint.ClientSecret},
		"refresh_token": {account.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	if endpoint.Scope != "" {
		form.Set("scope", endpoint.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", ErrRefreshRejected, resp.Status, strings.TrimSpace(string(body)))
	}

	var payload tokenResponse

	err = json.Unmarshal(body, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carries no access token", ErrRefreshRejected)
	}

	expiresIn := defaultExpiresIn
	if payload.ExpiresIn > 0 {
		expiresIn = time.Duration(payload.ExpiresIn) * time.Second
	}

	r.logger.Info("Token refreshed", "account", account.EmailAddress, "provider", account.Provider)

	return &models.Token{
		AccessToken: payload.AccessToken,
		ExpiresAt:   r.clock.Now().UTC().Add(expiresIn),
	}, nil
}
