package deployer

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrStateFileModified means another process wrote the checkpoint file
// between our reads. Concurrent orchestrator runs against one state file are
// disallowed.
var ErrStateFileModified = errors.New("deployment state file modified by another process")

// StepError is one entry in the append-only error log.
type StepError struct {
	Step      string    `json:"step"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the checkpoint written after every step. Contracts maps component
// name to Hedera id string; a nil entry means the component is not yet
// deployed.
type State struct {
	CurrentStep string             `json:"currentStep"`
	StartedAt   time.Time          `json:"startedAt"`
	CompletedAt *time.Time         `json:"completedAt"`
	Environment string             `json:"environment"`
	Contracts   map[string]*string `json:"contracts"`
	Errors      []StepError        `json:"errors"`
}

// NewState starts a fresh run at the first step.
func NewState(environment string, firstStep string) *State {
	return &State{
		CurrentStep: firstStep,
		StartedAt:   time.Now().UTC(),
		Environment: environment,
		Contracts:   map[string]*string{},
	}
}

// SetContract records a component id.
func (s *State) SetContract(component, id string) {
	s.Contracts[component] = &id
}

// Contract returns the recorded id for a component, empty when absent.
func (s *State) Contract(component string) string {
	if v := s.Contracts[component]; v != nil {
		return *v
	}
	return ""
}

// AppendError logs a step failure without losing earlier entries.
func (s *State) AppendError(step string, err error) {
	s.Errors = append(s.Errors, StepError{
		Step:      step,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

// StateStore persists the checkpoint with a refuse-if-modified policy: each
// save first checks that the on-disk content is what this process last wrote.
type StateStore struct {
	Path string

	lastWritten [sha256.Size]byte
	haveWritten bool
}

// Load reads the checkpoint, remembering its digest for the modification
// check on the next save. A missing file returns (nil, nil).
func (ss *StateStore) Load() (*State, error) {
	raw, err := os.ReadFile(ss.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file %s: %w", ss.Path, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", ss.Path, err)
	}
	ss.lastWritten = sha256.Sum256(raw)
	ss.haveWritten = true
	return &state, nil
}

// Save writes the checkpoint atomically (temp file + rename). It refuses to
// overwrite content this process did not produce.
func (ss *StateStore) Save(state *State) error {
	if ss.haveWritten {
		onDisk, err := os.ReadFile(ss.Path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking state file %s: %w", ss.Path, err)
		}
		if err == nil && sha256.Sum256(onDisk) != ss.lastWritten {
			return fmt.Errorf("%w: %s", ErrStateFileModified, ss.Path)
		}
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	tmp := ss.Path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, ss.Path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	ss.lastWritten = sha256.Sum256(raw)
	ss.haveWritten = true
	return nil
}
