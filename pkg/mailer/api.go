package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

const (
	GmailSendURL   = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
	OutlookSendURL = "https://graph.microsoft.com/v1.0/me/sendMail"
)

// APISender delivers through the Gmail and Microsoft Graph send endpoints using the account's
// access token.
type APISender struct {
	client     *http.Client
	gmailURL   string
	outlookURL string
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewAPISender(client *http.Client, clock clockwork.Clock, logger *slog.Logger) *APISender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &APISender{
		client:     client,
		gmailURL:   GmailSendURL,
		outlookURL: OutlookSendURL,
		clock:      clock,
		logger:     logger.With("component", "api_sender"),
	}
}

// WithEndpoints overrides the provider URLs.
func (s *APISender) WithEndpoints(gmailURL, outlookURL string) *APISender {
	s.gmailURL = gmailURL
	s.outlookURL = outlookURL

	return s
}

func (s *APISender) Send(
	ctx context.Context,
	account *models.ConnectedAccount,
	recipient, subject, body string,
) (protocol.SendResult, error) {
	messageID := NewMessageID(account.EmailAddress)

	var (
		target  string
		payload any
		success int
	)

	switch account.Provider {
	case models.ProviderGmail:
		raw := BuildMessage(account.EmailAddress, recipient, subject, body, messageID, s.clock.Now())
		target, success = s.gmailURL, http.StatusOK
		payload = map[string]string{"raw": base64.URLEncoding.EncodeToString(raw)}
	case models.ProviderOutlook:
		target, success = s.outlookURL, http.StatusAccepted
		payload = map[string]any{
			"message": map[string]any{
				"subject":      subject,
				"body":         map[string]string{"contentType": "HTML", "content": body},
				"toRecipients": []any{map[string]any{"emailAddress": map[string]string{"address": recipient}}},
			},
			"saveToSentItems": true,
		}
	default:
		return protocol.SendResult{}, fmt.Errorf("api sender cannot deliver for provider %q", account.Provider)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return protocol.SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return protocol.SendResult{}, err
	}

	req.Header.Set("Authorization", "Bearer "+account.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return protocol.SendResult{Reason: err.Error()}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != success {
		reason := fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(respBody)))
		s.logger.WarnContext(ctx, "API delivery failed", "account", account.EmailAddress, "provider", account.Provider, "reason", reason)

		return protocol.SendResult{Reason: reason}, nil
	}

	if account.Provider == models.ProviderGmail {
		var sent struct {
			ID string `json:"id"`
		}

		if json.Unmarshal(respBody, &sent) == nil && sent.ID != "" {
			messageID = sent.ID
		}
	}

	return protocol.SendResult{Sent: true, MessageID: messageID}, nil
}
