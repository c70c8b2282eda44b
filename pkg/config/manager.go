package config

import (
	"fmt"
	"sync"
)

// Section is one named group of settings.
type Section interface {
	ID() string
	Title() string
	Description() string

	// Data returns the settings as JSON-compatible values
	Data() map[string]any

	// SetData applies stored values. Unknown keys are ignored.
	SetData(data map[string]any) error

	Validate() error
	Reset()
}

// Manager binds registered sections to a Store.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	sections []Section
	byID     map[string]Section
}

// NewManager returns a manager with no sections.
func NewManager(store Store) *Manager {
	return &Manager{store: store, byID: make(map[string]Section)}
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}

// RegisterSection adds s. IDs must be unique.
func (m *Manager) RegisterSection(s Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[s.ID()]; exists {
		return fmt.Errorf("section %q already registered", s.ID())
	}
	m.sections = append(m.sections, s)
	m.byID[s.ID()] = s
	return nil
}

// GetSection returns the section registered under id.
func (m *Manager) GetSection(id string) (Section, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// GetSections returns the sections in registration order.
func (m *Manager) GetSections() []Section {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Section(nil), m.sections...)
}

// LoadAll reads the store and applies it over every section's defaults. A
// section whose stored values fail to apply or validate keeps its
// defaults; the first such error is returned after all sections load.
func (m *Manager) LoadAll() error {
	if err := m.store.Load(); err != nil {
		return err
	}

	var firstErr error
	for _, s := range m.GetSections() {
		data, err := m.store.GetSection(s.ID())
		if err != nil {
			return fmt.Errorf("failed to read section %s: %w", s.ID(), err)
		}
		s.Reset()
		if len(data) == 0 {
			continue
		}
		if err := apply(s, data); err != nil {
			s.Reset()
			if firstErr == nil {
				firstErr = fmt.Errorf("section %s: %w", s.ID(), err)
			}
		}
	}
	return firstErr
}

func apply(s Section, data map[string]any) error {
	if err := s.SetData(data); err != nil {
		return err
	}
	return s.Validate()
}

// SaveAll validates every section and writes them to the store.
func (m *Manager) SaveAll() error {
	sections := m.GetSections()
	for _, s := range sections {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("section %s: %w", s.ID(), err)
		}
	}
	for _, s := range sections {
		if err := m.store.SetSection(s.ID(), s.Data()); err != nil {
			return fmt.Errorf("failed to store section %s: %w", s.ID(), err)
		}
	}
	return m.store.Save()
}

// ResetAll restores every section's defaults.
func (m *Manager) ResetAll() {
	for _, s := range m.GetSections() {
		s.Reset()
	}
}
