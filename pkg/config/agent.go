package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDAgent is the identifier for the run settings section
	SectionIDAgent = "agent"

	defaultMaxSteps  = 20
	defaultStepDelay = 500 * time.Millisecond
	defaultStopGrace = 100 * time.Millisecond
)

// AgentSection holds run loop settings.
type AgentSection struct {
	mu        sync.RWMutex
	maxSteps  int
	stepDelay time.Duration
	stopGrace time.Duration
	dryRun    bool
	sites     map[string]string
}

// NewAgentSection creates a new agent section with default settings.
func NewAgentSection() *AgentSection {
	s := &AgentSection{}
	s.Reset()
	return s
}

func (s *AgentSection) ID() string    { return SectionIDAgent }
func (s *AgentSection) Title() string { return "Agent" }

func (s *AgentSection) Description() string {
	return "Run loop settings: step budget, pacing between steps, dry-run default and extra planner sites."
}

func (s *AgentSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sites := make(map[string]any, len(s.sites))
	for k, v := range s.sites {
		sites[k] = v
	}
	return map[string]any{
		"max_steps":  s.maxSteps,
		"step_delay": s.stepDelay.String(),
		"stop_grace": s.stopGrace.String(),
		"dry_run":    s.dryRun,
		"sites":      sites,
	}
}

func (s *AgentSection) SetData(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "max_steps":
			s.maxSteps, err = intValue(key, value)
		case "step_delay":
			s.stepDelay, err = durationValue(key, value)
		case "stop_grace":
			s.stopGrace, err = durationValue(key, value)
		case "dry_run":
			s.dryRun, err = boolValue(key, value)
		case "sites":
			s.sites, err = stringMapValue(key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *AgentSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.maxSteps < 1 || s.maxSteps > 1000 {
		return fmt.Errorf("max_steps must be between 1 and 1000, got %d", s.maxSteps)
	}
	if s.stepDelay < 0 || s.stopGrace < 0 {
		return fmt.Errorf("step_delay and stop_grace cannot be negative")
	}
	for name, url := range s.sites {
		if name == "" || url == "" {
			return fmt.Errorf("sites entries need a name and a url")
		}
	}
	return nil
}

func (s *AgentSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSteps = defaultMaxSteps
	s.stepDelay = defaultStepDelay
	s.stopGrace = defaultStopGrace
	s.dryRun = false
	s.sites = map[string]string{}
}

func (s *AgentSection) MaxSteps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSteps
}

func (s *AgentSection) StepDelay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepDelay
}

func (s *AgentSection) StopGrace() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopGrace
}

func (s *AgentSection) DryRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dryRun
}

// Sites returns a copy of the extra planner sites.
func (s *AgentSection) Sites() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.sites))
	for k, v := range s.sites {
		out[k] = v
	}
	return out
}
