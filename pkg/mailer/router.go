package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/protocol"
)

// Router picks the transport matching the account's provider.
type Router struct {
	smtp protocol.Sender
	api  protocol.Sender
}

func NewRouter(smtp, api protocol.Sender) *Router {
	return &Router{smtp: smtp, api: api}
}

func (r *Router) Send(ctx context.Context, account *models.ConnectedAccount, recipient, subject, body string) (protocol.SendResult, error) {
	switch account.Provider {
	case models.ProviderIMAPSMTP:
		return r.smtp.Send(ctx, account, recipient, subject, body)
	case models.ProviderGmail, models.ProviderOutlook:
		return r.api.Send(ctx, account, recipient, subject, body)
	default:
		return protocol.SendResult{}, fmt.Errorf("unknown account provider %q", account.Provider)
	}
}

// DryRunSender logs instead of delivering. Every send succeeds.
type DryRunSender struct {
	logger *slog.Logger
}

func NewDryRunSender(logger *slog.Logger) *DryRunSender {
	return &DryRunSender{logger: logger.With("component", "dry_run_sender")}
}

func (s *DryRunSender) Send(ctx context.Context, account *models.ConnectedAccount, recipient, subject, _ string) (protocol.SendResult, error) {
	messageID := NewMessageID(account.EmailAddress)

	s.logger.InfoContext(ctx, "Dry run: email not delivered",
		"account", account.EmailAddress,
		"recipient", recipient,
		"subject", subject,
		"message_id", messageID)

	return protocol.SendResult{Sent: true, MessageID: messageID}, nil
}
