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

// LeadStateRepository handles lead step state database operations.
type LeadStateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLeadStateRepository(db *sql.DB, logger *slog.Logger) *LeadStateRepository {
	return &LeadStateRepository{db: db, logger: logger}
}

const leadStateColumns = `id, lead_id, workflow_id, step_id, status, branch_result, started_at,
	completed_at, produced_email_ref, attempts, retry_kind, created_at, updated_at`

// GetOrCreate inserts a CREATED state unless one exists for key and returns the stored row.
// The unique (lead_id, workflow_id, step_id) constraint makes concurrent callers converge on
// the same row.
func (r *LeadStateRepository) GetOrCreate(ctx context.Context, key models.LeadStepKey, now time.Time) (*models.LeadStepState, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_step_states (id, lead_id, workflow_id, step_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (lead_id, workflow_id, step_id) DO NOTHING`,
		newID(""), key.LeadID, key.WorkflowID, key.StepID, models.StepStatusCreated, now)
	if err != nil {
		return nil, persistence.NewStateError("GetOrCreate", key.LeadID, key.WorkflowID, key.StepID, err)
	}

	return r.Get(ctx, key)
}

func (r *LeadStateRepository) Get(ctx context.Context, key models.LeadStepKey) (*models.LeadStepState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+leadStateColumns+` FROM lead_step_states WHERE lead_id = $1 AND workflow_id = $2 AND step_id = $3`,
		key.LeadID, key.WorkflowID, key.StepID)

	state, err := scanLeadState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrLeadStepStateNotFound
		}

		return nil, persistence.NewStateError("Get", key.LeadID, key.WorkflowID, key.StepID, err)
	}

	return state, nil
}

func (r *LeadStateRepository) Update(ctx context.Context, state *models.LeadStepState) error {
	state.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE lead_step_states SET
			status = $4,
			branch_result = $5,
			started_at = $6,
			completed_at = $7,
			produced_email_ref = $8,
			attempts = $9,
			retry_kind = $10,
			updated_at = $11
		WHERE lead_id = $1 AND workflow_id = $2 AND step_id = $3`,
		state.LeadID,
		state.WorkflowID,
		state.StepID,
		state.Status,
		nullableBranch(state.BranchResult),
		state.StartedAt,
		state.CompletedAt,
		state.ProducedEmailRef,
		state.Attempts,
		state.RetryKind,
		state.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStateError("Update", state.LeadID, state.WorkflowID, state.StepID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStateError("Update", state.LeadID, state.WorkflowID, state.StepID, err)
	}

	if affected == 0 {
		return persistence.NewStateError("Update", state.LeadID, state.WorkflowID, state.StepID,
			persistence.ErrLeadStepStateNotFound)
	}

	return nil
}

func (r *LeadStateRepository) ListByLeadWorkflow(ctx context.Context, leadID, workflowID string) ([]*models.LeadStepState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leadStateColumns+` FROM lead_step_states WHERE lead_id = $1 AND workflow_id = $2 ORDER BY created_at, step_id`,
		leadID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead step states: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	var states []*models.LeadStepState

	for rows.Next() {
		state, err := scanLeadState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead step state: %w", err)
		}

		states = append(states, state)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating lead step states: %w", err)
	}

	return states, nil
}

func nullableBranch(branch *models.BranchCondition) sql.NullString {
	if branch == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: string(*branch), Valid: true}
}

func scanLeadState(row scanner) (*models.LeadStepState, error) {
	var (
		state  models.LeadStepState
		branch sql.NullString
	)

	err := row.Scan(
		&state.ID,
		&state.LeadID,
		&state.WorkflowID,
		&state.StepID,
		&state.Status,
		&branch,
		&state.StartedAt,
		&state.CompletedAt,
		&state.ProducedEmailRef,
		&state.Attempts,
		&state.RetryKind,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if branch.Valid {
		result := models.BranchCondition(branch.String)
		state.BranchResult = &result
	}

	return &state, nil
}
