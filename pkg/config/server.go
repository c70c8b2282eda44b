package config

import (
	"fmt"
	"net"
	"sync"
)

const (
	// SectionIDServer is the identifier for the control surface section
	SectionIDServer = "server"

	defaultListenAddr = "127.0.0.1:7315"
)

// ServerSection configures the HTTP control surface.
type ServerSection struct {
	mu         sync.RWMutex
	listenAddr string
}

// NewServerSection creates a new server section with default settings.
func NewServerSection() *ServerSection {
	return &ServerSection{listenAddr: defaultListenAddr}
}

func (s *ServerSection) ID() string    { return SectionIDServer }
func (s *ServerSection) Title() string { return "Server" }
func (s *ServerSection) Description() string {
	return "Address of the HTTP and websocket control surface."
}

func (s *ServerSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{"listen_addr": s.listenAddr}
}

func (s *ServerSection) SetData(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := data["listen_addr"]; ok {
		addr, err := stringValue("listen_addr", v)
		if err != nil {
			return err
		}
		s.listenAddr = addr
	}
	return nil
}

func (s *ServerSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, _, err := net.SplitHostPort(s.listenAddr); err != nil {
		return fmt.Errorf("invalid listen_addr %q: %w", s.listenAddr, err)
	}
	return nil
}

func (s *ServerSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenAddr = defaultListenAddr
}

func (s *ServerSection) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenAddr
}
