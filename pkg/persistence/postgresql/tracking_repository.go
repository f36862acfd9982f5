package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukex/dripflow/pkg/models"
)

// TrackingRepository handles click and reply read-model database operations.
type TrackingRepository struct {
	db *sql.DB
}

func NewTrackingRepository(db *sql.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

func (r *TrackingRepository) RecordClick(ctx context.Context, click *models.Click) error {
	click.ID = newID(click.ID)

	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clicks (id, lead_id, email_id, url, clicked_at) VALUES ($1, $2, $3, $4, $5)`,
		click.ID, click.LeadID, click.EmailID, click.URL, click.ClickedAt)
	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *TrackingRepository) HasClicked(ctx context.Context, leadID, emailID, url string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clicks WHERE lead_id = $1 AND email_id = $2 AND url = $3)`,
		leadID, emailID, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query clicks: %w", err)
	}

	return exists, nil
}

func (r *TrackingRepository) RecordReply(ctx context.Context, reply *models.Reply) error {
	reply.ID = newID(reply.ID)

	if reply.ReceivedAt.IsZero() {
		reply.ReceivedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO replies (id, lead_id, email_id, message_id, snippet, received_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		reply.ID, reply.LeadID, reply.EmailID, reply.MessageID, reply.Snippet, reply.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}

	return nil
}

func (r *TrackingRepository) HasReplied(ctx context.Context, leadID string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM replies WHERE lead_id = $1)`, leadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query replies: %w", err)
	}

	return exists, nil
}
