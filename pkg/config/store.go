package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileVersion is written to every saved config file.
const FileVersion = "1.0"

// Store provides persistence for configuration data.
type Store interface {
	// Load (re)reads the configuration from its backing medium
	Load() error

	// Save writes the configuration out
	Save() error

	// GetSection returns a copy of one section's data, empty when absent
	GetSection(sectionID string) (map[string]any, error)

	// SetSection replaces one section's data
	SetSection(sectionID string, data map[string]any) error
}

// fileFormat is the on-disk layout.
type fileFormat struct {
	Version  string                    `json:"version"`
	Sections map[string]map[string]any `json:"sections"`
}

// FileStore implements Store with one JSON file, written atomically.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	data     map[string]map[string]any
	version  string
	modified bool
}

// DefaultPath is ~/.lumina/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".lumina", "config.json"), nil
}

// NewFileStore opens the store at path, or DefaultPath when path is empty.
// A missing file is an empty configuration.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	s := &FileStore{
		path:    path,
		data:    make(map[string]map[string]any),
		version: FileVersion,
	}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return s, nil
}

// Load re-reads the file. Unsaved changes are discarded.
func (s *FileStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.data = make(map[string]map[string]any)
		s.modified = false
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var f fileFormat
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("failed to decode config file: %w", err)
		}
	}
	if f.Sections == nil {
		f.Sections = make(map[string]map[string]any)
	}
	if f.Version == "" {
		f.Version = FileVersion
	}

	s.mu.Lock()
	s.data = f.Sections
	s.version = f.Version
	s.modified = false
	s.mu.Unlock()
	return nil
}

// Save writes to a temp file next to the target and renames it into place.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	raw, err := json.MarshalIndent(fileFormat{Version: s.version, Sections: s.data}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(raw, '\n'), 0o600); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.modified = false
	return nil
}

func (s *FileStore) GetSection(sectionID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySection(s.data[sectionID]), nil
}

func (s *FileStore) SetSection(sectionID string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sectionID] = copySection(data)
	s.modified = true
	return nil
}

// IsModified reports unsaved changes.
func (s *FileStore) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}

func copySection(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
