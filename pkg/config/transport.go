package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDTransport is the identifier for the executor messaging section
	SectionIDTransport = "transport"

	defaultToolTimeout   = 30 * time.Second
	defaultMaxAttempts   = 3
	defaultBackoffBase   = 500 * time.Millisecond
	defaultBackoffFactor = 2.0
	defaultAttachSettle  = 500 * time.Millisecond
	defaultPickerTimeout = 5 * time.Second
)

// TransportSection holds timeouts and retry settings for executor calls.
type TransportSection struct {
	mu            sync.RWMutex
	toolTimeout   time.Duration
	maxAttempts   int
	backoffBase   time.Duration
	backoffFactor float64
	attachSettle  time.Duration
	pickerTimeout time.Duration
}

// NewTransportSection creates a new transport section with default settings.
func NewTransportSection() *TransportSection {
	s := &TransportSection{}
	s.Reset()
	return s
}

func (s *TransportSection) ID() string    { return SectionIDTransport }
func (s *TransportSection) Title() string { return "Transport" }

func (s *TransportSection) Description() string {
	return "Tool call timeouts and the retry schedule used when the page executor does not answer."
}

func (s *TransportSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"tool_timeout":   s.toolTimeout.String(),
		"max_attempts":   s.maxAttempts,
		"backoff_base":   s.backoffBase.String(),
		"backoff_factor": s.backoffFactor,
		"attach_settle":  s.attachSettle.String(),
		"picker_timeout": s.pickerTimeout.String(),
	}
}

func (s *TransportSection) SetData(data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "tool_timeout":
			s.toolTimeout, err = durationValue(key, value)
		case "max_attempts":
			s.maxAttempts, err = intValue(key, value)
		case "backoff_base":
			s.backoffBase, err = durationValue(key, value)
		case "backoff_factor":
			s.backoffFactor, err = floatValue(key, value)
		case "attach_settle":
			s.attachSettle, err = durationValue(key, value)
		case "picker_timeout":
			s.pickerTimeout, err = durationValue(key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *TransportSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.toolTimeout <= 0 || s.pickerTimeout <= 0 {
		return fmt.Errorf("tool_timeout and picker_timeout must be positive")
	}
	if s.maxAttempts < 1 || s.maxAttempts > 10 {
		return fmt.Errorf("max_attempts must be between 1 and 10, got %d", s.maxAttempts)
	}
	if s.backoffBase < 0 || s.attachSettle < 0 {
		return fmt.Errorf("backoff_base and attach_settle cannot be negative")
	}
	if s.backoffFactor < 1 {
		return fmt.Errorf("backoff_factor must be at least 1, got %v", s.backoffFactor)
	}
	return nil
}

func (s *TransportSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolTimeout = defaultToolTimeout
	s.maxAttempts = defaultMaxAttempts
	s.backoffBase = defaultBackoffBase
	s.backoffFactor = defaultBackoffFactor
	s.attachSettle = defaultAttachSettle
	s.pickerTimeout = defaultPickerTimeout
}

// Retry returns (maxAttempts, base, factor).
func (s *TransportSection) Retry() (int, time.Duration, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxAttempts, s.backoffBase, s.backoffFactor
}

func (s *TransportSection) ToolTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toolTimeout
}

func (s *TransportSection) AttachSettle() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attachSettle
}

func (s *TransportSection) PickerTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pickerTimeout
}
