// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress tracks which archive members and whole archives a run
// has completed, so an interrupted run can resume.
package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/segmentio/encoding/json"
)

// completedKey holds the list of fully processed archives.
const completedKey = "completed_tar"

// DefaultName is the progress file used when none (or a non-JSON one) is
// configured.
const DefaultName = "cache.json"

// ResolvePath returns path when it names a .json file, otherwise
// DefaultName inside workDir.
func ResolvePath(path, workDir string) string {
	if path == "" || filepath.Ext(path) != ".json" {
		return filepath.Join(workDir, DefaultName)
	}
	return path
}

// State is the set of completed archives and members. It is safe for
// concurrent use.
type State struct {
	path string

	mu        sync.Mutex
	completed map[string]bool
	members   map[string]map[string]bool
}

// Load reads the progress file at path. A missing file yields an empty
// state.
func Load(path string) (*State, error) {
	s := &State{
		path:      path,
		completed: make(map[string]bool),
		members:   make(map[string]map[string]bool),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing progress file %s: %w", path, err)
	}
	return s, nil
}

// Path returns the file the state flushes to.
func (s *State) Path() string { return s.path }

// Record marks member of archive as done. It reports whether the member
// was new.
func (s *State) Record(archive, member string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.members[archive]
	if !ok {
		set = make(map[string]bool)
		s.members[archive] = set
	}
	if set[member] {
		return false
	}
	set[member] = true
	return true
}

// IsMemberDone reports whether member of archive was recorded.
func (s *State) IsMemberDone(archive, member string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[archive][member]
}

// RecordArchiveDone marks a whole archive as done.
func (s *State) RecordArchiveDone(archive string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[archive] = true
}

// IsArchiveDone reports whether archive was recorded as done.
func (s *State) IsArchiveDone(archive string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[archive]
}

// Completed returns the recorded members of archive, sorted.
func (s *State) Completed(archive string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.members[archive])
}

// Flush writes the state to its file, replacing it atomically.
func (s *State) Flush() error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating progress directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing progress: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Delete removes the progress file. A missing file is not an error.
func (s *State) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting progress file: %w", err)
	}
	return nil
}

// MarshalJSON encodes the state as
// {"completed_tar": [...], "<archive>": [members...]}.
func (s *State) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]string, len(s.members)+1)
	out[completedKey] = sortedKeys(s.completed)
	for archive, set := range s.members {
		out[archive] = sortedKeys(set)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the MarshalJSON shape, collapsing duplicates.
func (s *State) UnmarshalJSON(data []byte) error {
	var in map[string][]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed == nil {
		s.completed = make(map[string]bool)
	}
	if s.members == nil {
		s.members = make(map[string]map[string]bool)
	}
	for key, names := range in {
		if key == completedKey {
			for _, n := range names {
				s.completed[n] = true
			}
			continue
		}
		set := make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
		s.members[key] = set
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
