// Package protocol defines the contracts between the engine and its external collaborators.
package protocol

import (
	"context"

	"github.com/dukex/dripflow/pkg/models"
)

// SendResult reports the outcome of one delivery attempt.
type SendResult struct {
	Sent      bool
	Bounced   bool
	Reason    string
	MessageID string
}

// Sender delivers one email through a connected account. Expected delivery failures are
// reported in SendResult; the error is reserved for failures of the sender itself.
type Sender interface {
	Send(ctx context.Context, account *models.ConnectedAccount, recipient, subject, body string) (SendResult, error)
}

// TokenRefresher obtains a fresh access token for an OAuth account. It returns nil, nil
// when the account holds no refresh token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, account *models.ConnectedAccount) (*models.Token, error)
}
