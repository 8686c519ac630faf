// Package file provides the file-backed implementation of the workflow state
// store. The entire workflow lives in one JSON document that is replaced
// atomically on every write, so concurrent readers never observe a torn
// document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/store"
)

const stateFileName = "workflow.json"

// Store implements store.Store on top of a directory in the local filesystem.
type Store struct {
	root   string
	logger *slog.Logger

	// Guards the load-mutate-save sequence in UpdateStep and serializes
	// writers. Readers go through Load, which only needs the atomic-rename
	// guarantee of Save.
	mu sync.Mutex
}

// NewStore creates a file-backed store rooted at the given directory.
func NewStore(root string, logger *slog.Logger) *Store {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Store{
		root:   cleanRoot,
		logger: logger.With("module", "file_store"),
	}
}

func (s *Store) path() string {
	return filepath.Join(s.root, stateFileName)
}

// Save writes the document to a temporary file and renames it into place.
func (s *Store) Save(_ context.Context, state *models.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(state)
}

func (s *Store) save(state *models.WorkflowState) error {
	if err := os.MkdirAll(s.root, 0750); err != nil {
		return store.NewStateError("Save", fmt.Errorf("failed to create state directory: %w", err))
	}

	state.LastUpdateTime = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return store.NewStateError("Save", fmt.Errorf("failed to marshal workflow %s: %w", state.ID, err))
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return store.NewStateError("Save", fmt.Errorf("failed to write temporary state file: %w", err))
	}

	if err := os.Rename(tmp, s.path()); err != nil {
		return store.NewStateError("Save", fmt.Errorf("failed to replace state file: %w", err))
	}

	return nil
}

// Load reads the persisted document. A missing file returns (nil, nil). A
// document that fails to decode is logged and also treated as absent, so a
// corrupt read never blocks accepting a new workflow.
func (s *Store) Load(_ context.Context) (*models.WorkflowState, error) {
	body, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, store.NewStateError("Load", fmt.Errorf("failed to read state file: %w", err))
	}

	var state models.WorkflowState

	if err := json.Unmarshal(body, &state); err != nil {
		s.logger.Warn("Persisted workflow state is corrupt, treating as absent",
			"path", s.path(), "error", err)

		return nil, nil
	}

	if state.ID == "" {
		s.logger.Warn("Persisted workflow state has no workflow_id, treating as absent",
			"path", s.path())

		return nil, nil
	}

	return &state, nil
}

// Clear removes the persisted document.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path())
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return store.NewStateError("Clear", fmt.Errorf("failed to remove state file: %w", err))
	}

	return nil
}

// UpdateStep applies mutate to one step and persists the whole document.
func (s *Store) UpdateStep(ctx context.Context, index int, mutate func(*models.StepRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.Load(ctx)
	if err != nil {
		return err
	}

	if state == nil {
		return store.NewStateError("UpdateStep", store.ErrStateNotFound)
	}

	if index < 0 || index >= len(state.Steps) {
		return store.NewStateError("UpdateStep", store.ErrStepIndexOutOfRange)
	}

	mutate(&state.Steps[index])

	return s.save(state)
}
