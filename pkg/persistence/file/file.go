// Package file provides a JSON-file persistence implementation for local runs and tests.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/dukex/dripflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// One JSON document is stored per record, grouped in a directory per collection.
type Persistence struct {
	root  string
	store *store

	executionRepo *ExecutionRepository
	leadRepo      *LeadRepository
	leadStateRepo *LeadStateRepository
	throttleRepo  *ThrottleRepository
	queueRepo     *QueueRepository
	emailRepo     *EmailRepository
	accountRepo   *AccountRepository
	trackingRepo  *TrackingRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	s := &store{root: cleanRoot, mu: &sync.Mutex{}}

	return &Persistence{
		root:          cleanRoot,
		store:         s,
		executionRepo: &ExecutionRepository{store: s},
		leadRepo:      &LeadRepository{store: s},
		leadStateRepo: &LeadStateRepository{store: s},
		throttleRepo:  &ThrottleRepository{store: s},
		queueRepo:     &QueueRepository{store: s},
		emailRepo:     &EmailRepository{store: s},
		accountRepo:   &AccountRepository{store: s},
		trackingRepo:  &TrackingRepository{store: s},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository { return fp.executionRepo }
func (fp *Persistence) LeadRepository() persistence.LeadRepository           { return fp.leadRepo }
func (fp *Persistence) LeadStateRepository() persistence.LeadStateRepository { return fp.leadStateRepo }
func (fp *Persistence) ThrottleRepository() persistence.ThrottleRepository   { return fp.throttleRepo }
func (fp *Persistence) QueueRepository() persistence.QueueRepository         { return fp.queueRepo }
func (fp *Persistence) EmailRepository() persistence.EmailRepository         { return fp.emailRepo }
func (fp *Persistence) AccountRepository() persistence.AccountRepository     { return fp.accountRepo }
func (fp *Persistence) TrackingRepository() persistence.TrackingRepository   { return fp.trackingRepo }
