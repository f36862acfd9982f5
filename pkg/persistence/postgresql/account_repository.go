package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
)

// AccountRepository handles connected sending account database operations.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Save(ctx context.Context, account *models.ConnectedAccount) error {
	account.ID = newID(account.ID)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connected_accounts (id, owner_id, provider, email_address, active, smtp_host, smtp_port,
			smtp_username, smtp_password, access_token, refresh_token, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (email_address) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			provider = EXCLUDED.provider,
			active = EXCLUDED.active,
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			smtp_username = EXCLUDED.smtp_username,
			smtp_password = EXCLUDED.smtp_password,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at`,
		account.ID,
		account.OwnerID,
		account.Provider,
		account.EmailAddress,
		account.Active,
		account.SMTPHost,
		account.SMTPPort,
		account.SMTPUsername,
		account.SMTPPassword,
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save connected account: %w", err)
	}

	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, address string) (*models.ConnectedAccount, error) {
	var account models.ConnectedAccount

	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, provider, email_address, active, smtp_host, smtp_port, smtp_username,
			smtp_password, access_token, refresh_token, token_expires_at
		FROM connected_accounts WHERE email_address = $1`, address,
	).Scan(
		&account.ID,
		&account.OwnerID,
		&account.Provider,
		&account.EmailAddress,
		&account.Active,
		&account.SMTPHost,
		&account.SMTPPort,
		&account.SMTPUsername,
		&account.SMTPPassword,
		&account.AccessToken,
		&account.RefreshToken,
		&account.TokenExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByEmail", "account", address, persistence.ErrAccountNotFound)
		}

		return nil, fmt.Errorf("failed to scan connected account: %w", err)
	}

	return &account, nil
}
