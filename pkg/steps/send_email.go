package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/dripflow/pkg/log"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/protocol"
)

func (e *Evaluator) sendEmail(
	ctx context.Context,
	pass *Pass,
	node *models.StepNode,
	st *models.LeadStepState,
	cfg models.SendEmailConfig,
) (Outcome, error) {
	lead := pass.Lead
	logger := log.FromContext(ctx).With("step_id", node.ID, "account", cfg.EmailAccount)

	if lead.Unsubscribed {
		return Skipped("lead unsubscribed"), nil
	}

	if pass.Settings.ReplyAction == models.ReplyActionStop {
		replied, err := e.deps.Tracker.HasReplied(ctx, lead.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to check replies: %w", err)
		}

		if replied {
			logger.Info("Lead replied, stopping sequence")

			return Halted("lead replied"), nil
		}
	}

	account, err := e.deps.Accounts.GetByEmail(ctx, cfg.EmailAccount)
	if err != nil {
		if errors.Is(err, persistence.ErrAccountNotFound) {
			logger.Warn("No connected account for sender")

			return Failed("no connected account for " + cfg.EmailAccount), nil
		}

		return Outcome{}, fmt.Errorf("failed to load connected account: %w", err)
	}

	if !account.Active {
		return Failed("connected account " + account.EmailAddress + " is inactive"), nil
	}

	throttled, err := e.deps.Breaker.IsThrottled(ctx, account.EmailAddress)
	if err != nil {
		return Outcome{}, err
	}

	if throttled {
		logger.Info("Account throttled, skipping")

		return Skipped("account throttled"), nil
	}

	now := e.deps.Clock.Now()
	loc := pass.location()
	local := now.In(loc)

	if !pass.Settings.AllowsDay(local) {
		return retry(st, models.RetryDay, e.MaxWindowRetries, DayRetryDelay, "sending not allowed on "+local.Weekday().String()), nil
	}

	if !pass.Settings.WithinWindow(local) {
		return retry(st, models.RetryWindow, e.MaxWindowRetries, WindowRetryDelay, "outside sending window"), nil
	}

	if pass.Settings.MaxEmailsPerDay > 0 {
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

		sent, err := e.deps.Emails.CountSentSince(ctx, account.EmailAddress, midnight.UTC())
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to count sent emails: %w", err)
		}

		if sent >= pass.Settings.MaxEmailsPerDay {
			logger.Warn("Daily quota reached", "sent", sent, "max", pass.Settings.MaxEmailsPerDay)

			return retry(st, models.RetryQuota, e.MaxQuotaRetries, QuotaRetryDelay, "daily quota reached"), nil
		}
	}

	reason, err := e.ensureToken(ctx, account, now)
	if err != nil {
		return Outcome{}, err
	}

	if reason != "" {
		return Failed(reason), nil
	}

	return e.deliver(ctx, pass, node, st, account, cfg, local)
}

func (e *Evaluator) deliver(
	ctx context.Context,
	pass *Pass,
	node *models.StepNode,
	st *models.LeadStepState,
	account *models.ConnectedAccount,
	cfg models.SendEmailConfig,
	local time.Time,
) (Outcome, error) {
	lead := pass.Lead
	logger := log.FromContext(ctx).With("step_id", node.ID, "account", account.EmailAddress)

	subject, err := e.deps.Renderer.Render(cfg.Subject, lead, local)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to render subject: %w", err)
	}

	body, err := e.deps.Renderer.Render(cfg.Body, lead, local)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to render body: %w", err)
	}

	email := &models.Email{
		LeadID:    lead.ID,
		StepID:    node.ID,
		Sender:    account.EmailAddress,
		Recipient: lead.Email,
		Subject:   subject,
		Status:    models.EmailStatusPending,
		CreatedAt: e.deps.Clock.Now().UTC(),
	}

	err = e.deps.Emails.Create(ctx, email)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create email: %w", err)
	}

	email.Body, err = e.deps.Linker.PrepareBody(body, lead.ID, email.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to prepare email body: %w", err)
	}

	logger.Info("Sending email", "provider", account.Provider, "recipient", lead.Email)

	result, err := e.deps.Sender.Send(ctx, account, lead.Email, subject, email.Body)
	if err != nil {
		result = protocol.SendResult{Reason: err.Error()}
	}

	if result.Sent {
		return e.markSent(ctx, lead, account, email, result)
	}

	email.Status = models.EmailStatusFailed
	email.Error = result.Reason

	err = e.deps.Emails.Update(ctx, email)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to update email: %w", err)
	}

	if result.Bounced {
		logger.Warn("Email bounced", "reason", result.Reason, "bounce_handling", pass.Settings.BounceHandling)

		switch pass.Settings.BounceHandling {
		case models.BounceHandlingContinue:
			return Outcome{Kind: OutcomeCompleted, Reason: "bounced: " + result.Reason}, nil
		case models.BounceHandlingRetry:
			return retry(st, models.RetryBounce, e.MaxQuotaRetries, BounceRetryDelay, "bounced: "+result.Reason), nil
		default:
			return Failed("bounced: " + result.Reason), nil
		}
	}

	status, err := e.deps.Breaker.RecordFailure(ctx, account.EmailAddress)
	if err != nil {
		return Outcome{}, err
	}

	logger.Warn("Email send failed",
		"reason", result.Reason,
		"consecutive_failures", status.ConsecutiveFailures)

	return Failed("send failed: " + result.Reason), nil
}

func (e *Evaluator) markSent(
	ctx context.Context,
	lead *models.Lead,
	account *models.ConnectedAccount,
	email *models.Email,
	result protocol.SendResult,
) (Outcome, error) {
	sentAt := e.deps.Clock.Now().UTC()
	email.Status = models.EmailStatusSent
	email.SentAt = &sentAt
	email.MessageID = result.MessageID

	err := e.deps.Emails.Update(ctx, email)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to update email: %w", err)
	}

	err = e.deps.Leads.UpdateStatus(ctx, lead.ID, models.LeadStatusContacted)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to update lead status: %w", err)
	}

	lead.Status = models.LeadStatusContacted

	err = e.deps.Breaker.RecordSuccess(ctx, account.EmailAddress)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Kind: OutcomeCompleted, EmailRef: email.ID}, nil
}

// ensureToken refreshes an expired OAuth access token. A non-empty reason means the account
// cannot send; the failure also counts against the account's throttle.
func (e *Evaluator) ensureToken(ctx context.Context, account *models.ConnectedAccount, now time.Time) (string, error) {
	if e.deps.Tokens == nil || account.Provider == models.ProviderIMAPSMTP || !account.TokenExpired(now) {
		return "", nil
	}

	token, err := e.deps.Tokens.RefreshToken(ctx, account)

	reason := ""

	switch {
	case err != nil:
		reason = "token refresh failed: " + err.Error()
	case token == nil:
		reason = "account has no refresh token"
	}

	if reason != "" {
		_, recordErr := e.deps.Breaker.RecordFailure(ctx, account.EmailAddress)
		if recordErr != nil {
			return "", recordErr
		}

		log.FromContext(ctx).Warn("Token refresh failed", "account", account.EmailAddress, "reason", reason)

		return reason, nil
	}

	expiresAt := token.ExpiresAt
	account.AccessToken = token.AccessToken
	account.TokenExpiresAt = &expiresAt

	err = e.deps.Accounts.Save(ctx, account)
	if err != nil {
		return "", fmt.Errorf("failed to save refreshed token: %w", err)
	}

	return "", nil
}
