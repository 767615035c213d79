// Package persist keeps breakpoint line lists of closed files on disk so
// they survive closing and reopening a tab.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNoPath is returned when the store has no backing file.
var ErrNoPath = errors.New("persist path not set")

const fileVersion = 1

// file is the on-disk format.
type file struct {
	Version     int              `yaml:"version"`
	Breakpoints map[string][]int `yaml:"breakpoints"`
}

// Store maps file paths to breakpoint lines.
// All methods are thread-safe.
type Store struct {
	mu    sync.RWMutex
	path  string
	lines map[string][]int
}

// NewStore creates an empty store backed by path. An empty path gives an
// in-memory store whose Save and Load return ErrNoPath.
func NewStore(path string) *Store {
	return &Store{
		path:  path,
		lines: make(map[string][]int),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Lines returns the stored lines for a file, ascending.
func (s *Store) Lines(path string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines[path])
}

// Set replaces the lines stored for a file. An empty list removes the entry.
func (s *Store) Set(path string, lines []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(lines) == 0 {
		delete(s.lines, path)
		return
	}
	clean := slices.Clone(lines)
	slices.Sort(clean)
	s.lines[path] = slices.Compact(clean)
}

// Paths returns every file with stored breakpoints, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.lines))
	for p := range s.lines {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Save writes the store to disk, creating parent directories.
func (s *Store) Save() error {
	if s.path == "" {
		return ErrNoPath
	}

	s.mu.RLock()
	data := file{Version: fileVersion, Breakpoints: make(map[string][]int, len(s.lines))}
	for p, l := range s.lines {
		data.Breakpoints[p] = slices.Clone(l)
	}
	s.mu.RUnlock()

	content, err := yaml.Marshal(&data)
	if err != nil {
		return fmt.Errorf("marshal breakpoints: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(s.path, content, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Load replaces the store's contents with the file on disk. A missing file
// leaves the store empty.
func (s *Store) Load() error {
	if s.path == "" {
		return ErrNoPath
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read file: %w", err)
	}

	var data file
	if err := yaml.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("unmarshal breakpoints: %w", err)
	}
	if data.Version > fileVersion {
		return fmt.Errorf("unsupported breakpoint file version %d", data.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[string][]int, len(data.Breakpoints))
	for p, l := range data.Breakpoints {
		if len(l) == 0 {
			continue
		}
		clean := slices.Clone(l)
		slices.Sort(clean)
		s.lines[p] = slices.Compact(clean)
	}
	return nil
}
