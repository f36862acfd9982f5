package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/dripflow/pkg/models"
)

// ThrottleRepository handles per-account throttle status database operations.
type ThrottleRepository struct {
	db *sql.DB
}

func NewThrottleRepository(db *sql.DB) *ThrottleRepository {
	return &ThrottleRepository{db: db}
}

func (r *ThrottleRepository) Get(ctx context.Context, account string) (*models.ThrottleStatus, error) {
	status := models.ThrottleStatus{Account: account}

	err := r.db.QueryRowContext(ctx,
		`SELECT consecutive_failures, last_error_at, paused_until FROM throttle_statuses WHERE account = $1`,
		account,
	).Scan(&status.ConsecutiveFailures, &status.LastErrorAt, &status.PausedUntil)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get throttle status for %s: %w", account, err)
	}

	return &status, nil
}

func (r *ThrottleRepository) Save(ctx context.Context, status *models.ThrottleStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO throttle_statuses (account, consecutive_failures, last_error_at, paused_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account) DO UPDATE SET
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_error_at = EXCLUDED.last_error_at,
			paused_until = EXCLUDED.paused_until`,
		status.Account, status.ConsecutiveFailures, status.LastErrorAt, status.PausedUntil)
	if err != nil {
		return fmt.Errorf("failed to save throttle status for %s: %w", status.Account, err)
	}

	return nil
}

func (r *ThrottleRepository) RecordFailure(
	ctx context.Context,
	account string,
	at time.Time,
	threshold int,
	pause time.Duration,
) (*models.ThrottleStatus, error) {
	status := models.ThrottleStatus{Account: account}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO throttle_statuses (account, consecutive_failures, last_error_at, paused_until)
		VALUES ($1, 1, $2, CASE WHEN 1 >= $3::int THEN $4::timestamptz ELSE NULL END)
		ON CONFLICT (account) DO UPDATE SET
			consecutive_failures = throttle_statuses.consecutive_failures + 1,
			last_error_at = EXCLUDED.last_error_at,
			paused_until = CASE
				WHEN throttle_statuses.consecutive_failures + 1 >= $3::int THEN $4::timestamptz
				ELSE throttle_statuses.paused_until
			END
		RETURNING consecutive_failures, last_error_at, paused_until`,
		account, at, threshold, at.Add(pause),
	).Scan(&status.ConsecutiveFailures, &status.LastErrorAt, &status.PausedUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to record throttle failure for %s: %w", account, err)
	}

	return &status, nil
}
