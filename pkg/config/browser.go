package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

const (
	// SectionIDBrowser is the identifier for the page host section
	SectionIDBrowser = "browser"

	defaultStartURL          = "about:blank"
	defaultViewportWidth     = 1280
	defaultViewportHeight    = 720
	defaultNavigationTimeout = 30 * time.Second
)

// BrowserSection configures the page host.
type BrowserSection struct {
	mu                sync.RWMutex
	headless          bool
	startURL          string
	viewportWidth     int
	viewportHeight    int
	navigationTimeout time.Duration
	allowedHosts      []string
}

// NewBrowserSection creates a new browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

func (s *BrowserSection) ID() string    { return SectionIDBrowser }
func (s *BrowserSection) Title() string { return "Browser" }

func (s *BrowserSection) Description() string {
	return "Chromium window, start page and the hosts navigation may reach."
}

func (s *BrowserSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hosts := make([]any, len(s.allowedHosts))
	for i, h := range s.allowedHosts {
		hosts[i] = h
	}
	return map[string]any{
		"headless":           s.headless,
		"start_url":          s.startURL,
		"viewport_width":     s.viewportWidth,
		"viewport_height":    s.viewportHeight,
		"navigation_timeout": s.navigationTimeout.String(),
		"allowed_hosts":      hosts,
	}
}

func (s *BrowserSection) SetData(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "headless":
			s.headless, err = boolValue(key, value)
		case "start_url":
			s.startURL, err = stringValue(key, value)
		case "viewport_width":
			s.viewportWidth, err = intValue(key, value)
		case "viewport_height":
			s.viewportHeight, err = intValue(key, value)
		case "navigation_timeout":
			s.navigationTimeout, err = durationValue(key, value)
		case "allowed_hosts":
			s.allowedHosts, err = stringsValue(key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.viewportWidth < 200 || s.viewportHeight < 200 {
		return fmt.Errorf("viewport must be at least 200x200, got %dx%d", s.viewportWidth, s.viewportHeight)
	}
	if s.navigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be positive")
	}
	for _, p := range s.allowedHosts {
		if _, err := glob.Compile(p, '.'); err != nil {
			return fmt.Errorf("invalid allowed host pattern '%s': %w", p, err)
		}
	}
	return nil
}

func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headless = false
	s.startURL = defaultStartURL
	s.viewportWidth = defaultViewportWidth
	s.viewportHeight = defaultViewportHeight
	s.navigationTimeout = defaultNavigationTimeout
	s.allowedHosts = nil
}

func (s *BrowserSection) Headless() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headless
}

func (s *BrowserSection) StartURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startURL
}

// Viewport returns (width, height).
func (s *BrowserSection) Viewport() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewportWidth, s.viewportHeight
}

func (s *BrowserSection) NavigationTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.navigationTimeout
}

// AllowedHosts returns the host globs; empty allows any host.
func (s *BrowserSection) AllowedHosts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.allowedHosts...)
}

// SetHeadless switches the browser window off or on for the next launch.
func (s *BrowserSection) SetHeadless(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headless = enabled
}
