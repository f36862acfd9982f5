package models

import "time"

type AccountProvider string

const (
	ProviderGmail    AccountProvider = "gmail"
	ProviderOutlook  AccountProvider = "outlook"
	ProviderIMAPSMTP AccountProvider = "imap_smtp"
)

// ConnectedAccount is a mailbox a workflow owner sends from.
type ConnectedAccount struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Provider       AccountProvider `json:"provider"      validate:"oneof=gmail outlook imap_smtp"`
	EmailAddress   string          `json:"email_address" validate:"required,email"`
	Active         bool            `json:"active"`
	SMTPHost       string          `json:"smtp_host,omitempty"`
	SMTPPort       int             `json:"smtp_port,omitempty"`
	SMTPUsername   string          `json:"smtp_username,omitempty"`
	SMTPPassword   string          `json:"smtp_password,omitempty"`
	AccessToken    string          `json:"access_token,omitempty"`
	RefreshToken   string          `json:"refresh_token,omitempty"`
	TokenExpiresAt *time.Time      `json:"token_expires_at,omitempty"`
}

// TokenExpired reports whether the access token is missing or past its expiry.
func (a *ConnectedAccount) TokenExpired(now time.Time) bool {
	if a.AccessToken == "" {
		return true
	}

	return a.TokenExpiresAt != nil && !now.Before(*a.TokenExpiresAt)
}

// Token is an OAuth access token issued by a provider.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.ExpiresAt)
}
