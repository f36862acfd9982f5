package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
)

// LeadRepository handles lead database operations.
type LeadRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLeadRepository(db *sql.DB, logger *slog.Logger) *LeadRepository {
	return &LeadRepository{db: db, logger: logger}
}

const leadColumns = `id, campaign_id, email, first_name, last_name, company, phone, status,
	workflow_status, unsubscribed, custom_fields, created_at, updated_at`

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	lead.ID = newID(lead.ID)

	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}

	lead.UpdatedAt = now

	customFields := lead.CustomFields
	if customFields == nil {
		customFields = map[string]string{}
	}

	customJSON, err := json.Marshal(customFields)
	if err != nil {
		return fmt.Errorf("failed to marshal custom fields: %w", err)
	}

	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id,
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			company = EXCLUDED.company,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			workflow_status = EXCLUDED.workflow_status,
			unsubscribed = EXCLUDED.unsubscribed,
			custom_fields = EXCLUDED.custom_fields,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID,
		lead.CampaignID,
		lead.Email,
		lead.FirstName,
		lead.LastName,
		lead.Company,
		lead.Phone,
		lead.Status,
		lead.WorkflowStatus,
		lead.Unsubscribed,
		customJSON,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "lead", id, persistence.ErrLeadNotFound)
		}

		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	return lead, nil
}

func (r *LeadRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*models.Lead, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	var leads []*models.Lead

	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		leads = append(leads, lead)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

func (r *LeadRepository) UpdateWorkflowStatus(ctx context.Context, id string, status models.LeadWorkflowStatus) error {
	return r.update(ctx, "UpdateWorkflowStatus", id,
		`UPDATE leads SET workflow_status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error {
	return r.update(ctx, "UpdateStatus", id,
		`UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (r *LeadRepository) MarkUnsubscribed(ctx context.Context, id string) error {
	return r.update(ctx, "MarkUnsubscribed", id,
		`UPDATE leads SET unsubscribed = true, updated_at = NOW() WHERE id = $1`)
}

func (r *LeadRepository) update(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError(op, "lead", id, persistence.ErrLeadNotFound)
	}

	return nil
}

func scanLead(row scanner) (*models.Lead, error) {
	var (
		lead       models.Lead
		customJSON []byte
	)

	err := row.Scan(
		&lead.ID,
		&lead.CampaignID,
		&lead.Email,
		&lead.FirstName,
		&lead.LastName,
		&lead.Company,
		&lead.Phone,
		&lead.Status,
		&lead.WorkflowStatus,
		&lead.Unsubscribed,
		&customJSON,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.CustomFields = map[string]string{}

	err = json.Unmarshal(customJSON, &lead.CustomFields)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal custom fields: %w", err)
	}

	return &lead, nil
}
