package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
)

// EmailRepository handles outbound email record database operations.
type EmailRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewEmailRepository(db *sql.DB, logger *slog.Logger) *EmailRepository {
	return &EmailRepository{db: db, logger: logger}
}

const emailColumns = `id, lead_id, step_id, sender, recipient, subject, body, status, message_id, error, created_at, sent_at`

func (r *EmailRepository) Create(ctx context.Context, email *models.Email) error {
	email.ID = newID(email.ID)

	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO emails (`+emailColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		email.ID,
		email.LeadID,
		email.StepID,
		email.Sender,
		email.Recipient,
		email.Subject,
		email.Body,
		email.Status,
		email.MessageID,
		email.Error,
		email.CreatedAt,
		email.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email: %w", err)
	}

	return nil
}

func (r *EmailRepository) Update(ctx context.Context, email *models.Email) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE emails SET subject = $2, body = $3, status = $4, message_id = $5, error = $6, sent_at = $7
		WHERE id = $1`,
		email.ID, email.Subject, email.Body, email.Status, email.MessageID, email.Error, email.SentAt)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError("Update", "email", email.ID, persistence.ErrEmailNotFound)
	}

	return nil
}

func (r *EmailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	email, err := scanEmail(r.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "email", id, persistence.ErrEmailNotFound)
		}

		return nil, fmt.Errorf("failed to scan email: %w", err)
	}

	return email, nil
}

func (r *EmailRepository) ListByLead(ctx context.Context, leadID string) ([]*models.Email, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE lead_id = $1 ORDER BY created_at, id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	var emails []*models.Email

	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}

		emails = append(emails, email)
	}

	return emails, rows.Err()
}

func scanEmail(row scanner) (*models.Email, error) {
	var email models.Email

	err := row.Scan(
		&email.ID,
		&email.LeadID,
		&email.StepID,
		&email.Sender,
		&email.Recipient,
		&email.Subject,
		&email.Body,
		&email.Status,
		&email.MessageID,
		&email.Error,
		&email.CreatedAt,
		&email.SentAt,
	)
	if err != nil {
		return nil, err
	}

	return &email, nil
}

func (r *EmailRepository) CountSentSince(ctx context.Context, sender string, since time.Time) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emails WHERE sender = $1 AND status = $2 AND sent_at >= $3`,
		sender, models.EmailStatusSent, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent emails: %w", err)
	}

	return count, nil
}
