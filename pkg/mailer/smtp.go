package mailer

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers through the account's SMTP server, upgrading to STARTTLS when offered.
type SMTPSender struct {
	sendMail SendMailFunc
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewSMTPSender creates a sender. sendMail defaults to smtp.SendMail.
func NewSMTPSender(sendMail SendMailFunc, clock clockwork.Clock, logger *slog.Logger) *SMTPSender {
	if sendMail == nil {
		sendMail = smtp.SendMail
	}

	return &SMTPSender{sendMail: sendMail, clock: clock, logger: logger.With("component", "smtp_sender")}
}

func (s *SMTPSender) Send(
	ctx context.Context,
	account *models.ConnectedAccount,
	recipient, subject, body string,
) (protocol.SendResult, error) {
	if account.SMTPHost == "" {
		return protocol.SendResult{Reason: "account has no smtp host"}, nil
	}

	port := account.SMTPPort
	if port == 0 {
		port = 587
	}

	username := account.SMTPUsername
	if username == "" {
		username = account.EmailAddress
	}

	var auth smtp.Auth
	if account.SMTPPassword != "" {
		auth = smtp.PlainAuth("", username, account.SMTPPassword, account.SMTPHost)
	}

	messageID := NewMessageID(account.EmailAddress)
	msg := BuildMessage(account.EmailAddress, recipient, subject, body, messageID, s.clock.Now())
	addr := net.JoinHostPort(account.SMTPHost, strconv.Itoa(port))

	err := s.sendMail(addr, auth, account.EmailAddress, []string{recipient}, msg)
	if err != nil {
		result := protocol.SendResult{Reason: err.Error(), Bounced: isPermanentRejection(err)}

		s.logger.WarnContext(ctx, "SMTP delivery failed",
			"account", account.EmailAddress,
			"recipient", recipient,
			"bounced", result.Bounced,
			"error", err)

		return result, nil
	}

	return protocol.SendResult{Sent: true, MessageID: messageID}, nil
}

// isPermanentRejection reports whether the server refused the recipient for good (5xx on
// the mailbox), which is a bounce rather than a failure of the account.
func isPermanentRejection(err error) bool {
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) {
		return false
	}

	switch protoErr.Code {
	case 550, 551, 552, 553, 554:
		return true
	default:
		return false
	}
}
