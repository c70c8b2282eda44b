package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// NewDefaultManager returns a manager over store with every section
// registered.
func NewDefaultManager(store Store) (*Manager, error) {
	manager := NewManager(store)
	for _, s := range []Section{
		NewAgentSection(),
		NewTransportSection(),
		NewBrowserSection(),
		NewServerSection(),
	} {
		if err := manager.RegisterSection(s); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// Initialize creates and loads the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}
	manager, err := NewDefaultManager(store)
	if err != nil {
		return err
	}
	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

func globalSection[T Section](id string) T {
	var zero T
	if !IsInitialized() {
		return zero
	}
	section, ok := Global().GetSection(id)
	if !ok {
		return zero
	}
	typed, ok := section.(T)
	if !ok {
		return zero
	}
	return typed
}

// GetAgent returns the agent section from global config, nil when config
// is not initialized. The other getters behave the same.
func GetAgent() *AgentSection {
	return globalSection[*AgentSection](SectionIDAgent)
}

func GetTransport() *TransportSection {
	return globalSection[*TransportSection](SectionIDTransport)
}

func GetBrowser() *BrowserSection {
	return globalSection[*BrowserSection](SectionIDBrowser)
}

func GetServer() *ServerSection {
	return globalSection[*ServerSection](SectionIDServer)
}
