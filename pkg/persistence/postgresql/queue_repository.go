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
	"github.com/lib/pq"
)

// QueueRepository handles intake queue database operations.
type QueueRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewQueueRepository(db *sql.DB, logger *slog.Logger) *QueueRepository {
	return &QueueRepository{db: db, logger: logger}
}

const queueColumns = `id, lead_id, execution_id, settings, processed, processing, run_after,
	created_at, claimed_at, processed_at`

func (r *QueueRepository) Enqueue(ctx context.Context, item *models.QueueItem) error {
	item.ID = newID(item.ID)

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if item.RunAfter.IsZero() {
		item.RunAfter = item.CreatedAt
	}

	settingsJSON, err := json.Marshal(item.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO queue_items (`+queueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID,
		item.LeadID,
		item.ExecutionID,
		settingsJSON,
		item.Processed,
		item.Processing,
		item.RunAfter,
		item.CreatedAt,
		item.ClaimedAt,
		item.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue item: %w", err)
	}

	return nil
}

func (r *QueueRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM queue_items WHERE id = $1`, id)

	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "queue item", id, persistence.ErrQueueItemNotFound)
		}

		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}

	return item, nil
}

// ClaimBatch locks claimable rows with FOR UPDATE SKIP LOCKED so concurrent schedulers never
// see the same item, then flags them as processing inside the same transaction.
func (r *QueueRepository) ClaimBatch(ctx context.Context, now time.Time, size int) ([]*models.QueueItem, error) {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	rows, err := transaction.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM queue_items
		WHERE processed = false AND processing = false AND run_after <= $1
		ORDER BY created_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, size)
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable items: %w", err)
	}

	var items []*models.QueueItem

	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			closeRows(ctx, r.logger, rows)

			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}

		items = append(items, item)
	}

	closeRows(ctx, r.logger, rows)

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating claimable items: %w", err)
	}

	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		item.Processing = true
		item.ClaimedAt = &now
	}

	_, err = transaction.ExecContext(ctx,
		`UPDATE queue_items SET processing = true, claimed_at = $1 WHERE id = ANY($2)`,
		now, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to mark items processing: %w", err)
	}

	err = transaction.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return items, nil
}

func (r *QueueRepository) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	return r.update(ctx, "MarkProcessed", id,
		`UPDATE queue_items SET processed = true, processing = false, processed_at = $2 WHERE id = $1`, now)
}

func (r *QueueRepository) Release(ctx context.Context, id string) error {
	return r.update(ctx, "Release", id,
		`UPDATE queue_items SET processing = false, claimed_at = NULL WHERE id = $1 AND processed = false`)
}

func (r *QueueRepository) ResetStuck(ctx context.Context, claimedBefore time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE queue_items SET processing = false, claimed_at = NULL
		WHERE processing = true AND processed = false AND claimed_at < $1`, claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck items: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(affected), nil
}

func (r *QueueRepository) update(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError(op, "queue item", id, persistence.ErrQueueItemNotFound)
	}

	return nil
}

func scanQueueItem(row scanner) (*models.QueueItem, error) {
	var (
		item         models.QueueItem
		settingsJSON []byte
	)

	err := row.Scan(
		&item.ID,
		&item.LeadID,
		&item.ExecutionID,
		&settingsJSON,
		&item.Processed,
		&item.Processing,
		&item.RunAfter,
		&item.CreatedAt,
		&item.ClaimedAt,
		&item.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(settingsJSON, &item.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings snapshot: %w", err)
	}

	return &item, nil
}
