// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/persistence/sqlbase"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	executionRepo *ExecutionRepository
	leadRepo      *LeadRepository
	leadStateRepo *LeadStateRepository
	throttleRepo  *ThrottleRepository
	queueRepo     *QueueRepository
	emailRepo     *EmailRepository
	accountRepo   *AccountRepository
	trackingRepo  *TrackingRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:            database,
		logger:        logger,
		executionRepo: NewExecutionRepository(database, logger),
		leadRepo:      NewLeadRepository(database, logger),
		leadStateRepo: NewLeadStateRepository(database, logger),
		throttleRepo:  NewThrottleRepository(database),
		queueRepo:     NewQueueRepository(database, logger),
		emailRepo:     NewEmailRepository(database, logger),
		accountRepo:   NewAccountRepository(database),
		trackingRepo:  NewTrackingRepository(database),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository { return p.executionRepo }
func (p *Persistence) LeadRepository() persistence.LeadRepository           { return p.leadRepo }
func (p *Persistence) LeadStateRepository() persistence.LeadStateRepository { return p.leadStateRepo }
func (p *Persistence) ThrottleRepository() persistence.ThrottleRepository   { return p.throttleRepo }
func (p *Persistence) QueueRepository() persistence.QueueRepository         { return p.queueRepo }
func (p *Persistence) EmailRepository() persistence.EmailRepository         { return p.emailRepo }
func (p *Persistence) AccountRepository() persistence.AccountRepository     { return p.accountRepo }
func (p *Persistence) TrackingRepository() persistence.TrackingRepository   { return p.trackingRepo }

type scanner interface {
	Scan(dest ...any) error
}

func newID(id string) string {
	if id != "" {
		return id
	}

	return uuid.New().String()
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	if closeErr := rows.Close(); closeErr != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
	}
}
