package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	executionsDir = "executions"
	leadsDir      = "leads"
	leadStatesDir = "lead_step_states"
	throttlesDir  = "throttle_statuses"
	queueDir      = "queue_items"
	emailsDir     = "emails"
	accountsDir   = "connected_accounts"
	clicksDir     = "clicks"
	repliesDir    = "replies"
)

// store serializes every read-modify-write behind one mutex shared by all repositories.
type store struct {
	root string
	mu   *sync.Mutex
}

// validateID validates that the ID is safe for file operations.
func validateID(id string) error {
	if id == "" {
		return errors.New("ID cannot be empty")
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("ID %q contains invalid characters", id)
	}

	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}

	return uuid.New().String()
}

func (s *store) write(dir, id string, value any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	collectionDir := filepath.Join(s.root, dir)

	err = os.MkdirAll(collectionDir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	err = os.WriteFile(filepath.Join(collectionDir, id+".json"), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return nil
}

// read decodes dir/id into value and reports whether the record exists.
func (s *store) read(dir, id string, value any) (bool, error) {
	err := validateID(id)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, dir, id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s/%s: %w", dir, id, err)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return true, nil
}

// readAll decodes every record of a collection. A missing directory is an empty collection.
func readAll[T any](s *store, dir string) ([]*T, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(s.root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", dir, err)
	}

	records := make([]*T, 0, len(files))

	for _, file := range files {
		var record T

		found, err := s.read(dir, strings.TrimSuffix(file, ".json"), &record)
		if err != nil {
			return nil, err
		}

		if found {
			records = append(records, &record)
		}
	}

	return records, nil
}
