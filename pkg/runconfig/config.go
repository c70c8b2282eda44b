// Package runconfig loads YAML run files for one-shot runs and enforces
// their constraints on tool calls.
package runconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/lumina/pkg/tools"
)

// Config represents one run file.
type Config struct {
	// Goal is the free-text instruction handed to the planner.
	Goal string `yaml:"goal" json:"goal"`

	MaxSteps int  `yaml:"max_steps" json:"max_steps"`
	DryRun   bool `yaml:"dry_run" json:"dry_run"`

	// Mode picks the page host.
	Mode Mode `yaml:"mode" json:"mode"`

	// StartURL is loaded before the first step. Empty means about:blank.
	StartURL string `yaml:"start_url" json:"start_url"`

	Constraints ConstraintConfig `yaml:"constraints" json:"constraints"`
	Artifacts   ArtifactConfig   `yaml:"artifacts" json:"artifacts"`
	Logging     LoggingConfig    `yaml:"logging" json:"logging"`
}

// Mode defines which page host a run drives.
type Mode string

const (
	// ModeBrowser drives a real Chromium page through playwright.
	ModeBrowser Mode = "browser"
	// ModeStatic fetches pages over HTTP into a parsed document. Nothing
	// runs scripts.
	ModeStatic Mode = "static"
)

// ConstraintConfig limits what a run may do.
type ConstraintConfig struct {
	// Host globs navigate may reach. Empty allows any host.
	AllowedHosts []string `yaml:"allowed_hosts" json:"allowed_hosts"`
	DeniedHosts  []string `yaml:"denied_hosts" json:"denied_hosts"`

	// Tool restrictions. Empty allows every tool.
	AllowedTools []string `yaml:"allowed_tools" json:"allowed_tools"`

	// ReadOnly rejects tools that click or type.
	ReadOnly bool `yaml:"read_only" json:"read_only"`

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ArtifactConfig defines which reports are written after the run.
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	JSON     bool `yaml:"json" json:"json"`
	Markdown bool `yaml:"markdown" json:"markdown"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// Verbosity levels accepted in LoggingConfig.
const (
	VerbosityQuiet   = "quiet"
	VerbosityNormal  = "normal"
	VerbosityVerbose = "verbose"
	VerbosityDebug   = "debug"
)

// DefaultConfig returns a configuration suitable for most runs.
func DefaultConfig() *Config {
	return &Config{
		MaxSteps: 20,
		Mode:     ModeBrowser,
		Constraints: ConstraintConfig{
			Timeout: 5 * time.Minute,
		},
		Artifacts: ArtifactConfig{
			OutputDir: ".lumina/artifacts",
			JSON:      true,
			Markdown:  true,
		},
		Logging: LoggingConfig{Verbosity: VerbosityNormal},
	}
}

// Load reads a run file over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Goal == "" {
		return fmt.Errorf("goal is required")
	}

	if c.Mode == "" {
		c.Mode = ModeBrowser
	}
	if c.Mode != ModeBrowser && c.Mode != ModeStatic {
		return fmt.Errorf("invalid mode: %s (must be 'browser' or 'static')", c.Mode)
	}

	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps cannot be negative")
	}

	if c.Constraints.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	for _, name := range c.Constraints.AllowedTools {
		if _, err := tools.ParseKind(name); err != nil {
			return fmt.Errorf("invalid allowed_tools entry: %w", err)
		}
	}

	if _, err := NewGuard(c.Constraints); err != nil {
		return err
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts are enabled")
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = VerbosityNormal
	}
	switch c.Logging.Verbosity {
	case VerbosityQuiet, VerbosityNormal, VerbosityVerbose, VerbosityDebug:
	default:
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}
