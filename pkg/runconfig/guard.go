package runconfig

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/lumina/pkg/tools"
)

// ViolationType identifies the type of constraint that was violated
type ViolationType string

const (
	ViolationToolRestriction ViolationType = "tool_restriction"
	ViolationHost            ViolationType = "host"
	ViolationReadOnlyMode    ViolationType = "read_only_mode"
)

// ConstraintViolation represents a constraint violation error
type ConstraintViolation struct {
	Type    ViolationType
	Message string
	Details map[string]any
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation (%s): %s", e.Type, e.Message)
}

// Guard vets tool calls against a ConstraintConfig. It is safe for
// concurrent use once built.
type Guard struct {
	allowedTools map[tools.Kind]bool
	allowedHosts []glob.Glob
	deniedHosts  []glob.Glob
	readOnly     bool
	cfg          ConstraintConfig
}

// NewGuard compiles the host globs of cfg. Globs use '.' as the separator,
// so "*.example.com" matches one label and "**.example.com" any number.
func NewGuard(cfg ConstraintConfig) (*Guard, error) {
	g := &Guard{readOnly: cfg.ReadOnly, cfg: cfg}

	if len(cfg.AllowedTools) > 0 {
		g.allowedTools = make(map[tools.Kind]bool, len(cfg.AllowedTools))
		for _, name := range cfg.AllowedTools {
			k, err := tools.ParseKind(name)
			if err != nil {
				return nil, fmt.Errorf("invalid allowed tool: %w", err)
			}
			g.allowedTools[k] = true
		}
	}

	var err error
	if g.allowedHosts, err = compileHosts(cfg.AllowedHosts); err != nil {
		return nil, fmt.Errorf("invalid allowed host pattern: %w", err)
	}
	if g.deniedHosts, err = compileHosts(cfg.DeniedHosts); err != nil {
		return nil, fmt.Errorf("invalid denied host pattern: %w", err)
	}
	return g, nil
}

func compileHosts(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p), '.')
		if err != nil {
			return nil, fmt.Errorf("'%s': %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Check returns a *ConstraintViolation if call is not allowed.
func (g *Guard) Check(call tools.Call) error {
	kind := call.Kind()

	if g.allowedTools != nil && !g.allowedTools[kind] {
		return &ConstraintViolation{
			Type:    ViolationToolRestriction,
			Message: fmt.Sprintf("tool '%s' is not in allowed tools list", kind),
			Details: map[string]any{
				"tool":          string(kind),
				"allowed_tools": g.cfg.AllowedTools,
			},
		}
	}

	if g.readOnly && kind.Mutates() {
		return &ConstraintViolation{
			Type:    ViolationReadOnlyMode,
			Message: fmt.Sprintf("tool '%s' is not allowed in read-only mode", kind),
			Details: map[string]any{"tool": string(kind)},
		}
	}

	if nav, ok := call.(tools.NavigateArgs); ok {
		return g.checkURL(nav.URL)
	}
	return nil
}

func (g *Guard) checkURL(raw string) error {
	if raw == "about:blank" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return &ConstraintViolation{
			Type:    ViolationHost,
			Message: fmt.Sprintf("cannot determine host of '%s'", raw),
			Details: map[string]any{"url": raw},
		}
	}
	host := strings.ToLower(u.Hostname())

	// Denied patterns take precedence
	for _, p := range g.deniedHosts {
		if p.Match(host) {
			return g.hostViolation(raw, host, "is denied")
		}
	}
	if len(g.allowedHosts) == 0 {
		return nil
	}
	for _, p := range g.allowedHosts {
		if p.Match(host) {
			return nil
		}
	}
	return g.hostViolation(raw, host, "does not match allowed hosts")
}

func (g *Guard) hostViolation(raw, host, reason string) error {
	return &ConstraintViolation{
		Type:    ViolationHost,
		Message: fmt.Sprintf("host '%s' %s", host, reason),
		Details: map[string]any{
			"url":           raw,
			"allowed_hosts": g.cfg.AllowedHosts,
			"denied_hosts":  g.cfg.DeniedHosts,
		},
	}
}
