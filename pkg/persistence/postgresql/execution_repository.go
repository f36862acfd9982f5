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

// ExecutionRepository handles workflow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, workflow_id, campaign_id, owner_id, owner_timezone, steps, settings, obsolete, created_at`

// Save inserts or replaces a workflow execution.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	execution.ID = newID(execution.ID)

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	stepsJSON, err := json.Marshal(execution.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	settingsJSON, err := json.Marshal(execution.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			campaign_id = EXCLUDED.campaign_id,
			owner_id = EXCLUDED.owner_id,
			owner_timezone = EXCLUDED.owner_timezone,
			steps = EXCLUDED.steps,
			settings = EXCLUDED.settings,
			obsolete = EXCLUDED.obsolete
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.CampaignID,
		execution.OwnerID,
		execution.OwnerTimezone,
		stepsJSON,
		settingsJSON,
		execution.Obsolete,
		execution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM workflow_executions WHERE id = $1`, id)

	execution, err := r.scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ActiveByCampaign(ctx context.Context, campaignID string) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions
		WHERE campaign_id = $1 AND obsolete = false
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) MarkObsolete(ctx context.Context, workflowID, keepID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflow_executions SET obsolete = true WHERE workflow_id = $1 AND id <> $2`,
		workflowID, keepID)
	if err != nil {
		return fmt.Errorf("failed to mark executions obsolete: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) scanExecution(row scanner) (*models.WorkflowExecution, error) {
	var (
		execution                models.WorkflowExecution
		stepsJSON, settingsJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.CampaignID,
		&execution.OwnerID,
		&execution.OwnerTimezone,
		&stepsJSON,
		&settingsJSON,
		&execution.Obsolete,
		&execution.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(stepsJSON, &execution.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	err = json.Unmarshal(settingsJSON, &execution.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return &execution, nil
}
