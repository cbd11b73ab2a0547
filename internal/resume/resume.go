// Package resume records finished (target, check) pairs so an interrupted
// scan can pick up where it stopped.
package resume

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// Entry is one finished check against one target.
type Entry struct {
	Target string `json:"target"`
	Check  string `json:"check"`
}

// State tracks the progress of a scan so it can be resumed after interruption.
type State struct {
	ScanID    string  `json:"scan_id"`
	Completed []Entry `json:"completed"`

	mu   sync.Mutex
	path string
	done map[Entry]struct{}
}

// New creates a new empty resume state that will be saved to the given path.
func New(path, scanID string) *State {
	return &State{
		ScanID: scanID,
		path:   path,
		done:   make(map[Entry]struct{}),
	}
}

// Load reads an existing resume state from disk. Returns nil if the file
// does not exist.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading resume file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing resume file: %w", err)
	}

	s.path = path
	s.done = make(map[Entry]struct{}, len(s.Completed))
	for _, e := range s.Completed {
		s.done[e] = struct{}{}
	}
	return &s, nil
}

// IsCompleted reports whether check already ran against target.
func (s *State) IsCompleted(target, check string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[Entry{target, check}]
	return ok
}

// MarkCompleted records check against target as done.
func (s *State) MarkCompleted(target, check string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := Entry{target, check}
	if _, ok := s.done[e]; !ok {
		s.done[e] = struct{}{}
		s.Completed = append(s.Completed, e)
	}
}

// Save writes the current state to disk.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serializing resume state: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// Remove deletes the resume file (called on successful completion).
func (s *State) Remove() error {
	return os.Remove(s.path)
}
