// Package planner turns a free-text goal into a fixed sequence of tool
// calls by matching a handful of goal shapes. It never fails: goals it
// cannot plan come back as one diagnostic step.
package planner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/entrhq/lumina/pkg/tools"
	"github.com/entrhq/lumina/pkg/types"
)

const (
	// ExtractSelector is what extract goals read from the page.
	ExtractSelector = "h1, h2, h3"

	noFormURLThought    = `Error: No URL found in goal. Please provide a URL like "Fill form at https://example.com"`
	noExtractURLThought = `Error: No URL or website found. Please include a URL like "Extract from https://example.com" or mention a website like "Extract from Wikipedia"`
	unknownGoalThought  = "I need more information to complete this goal"
)

var (
	explicitURL = regexp.MustCompile(`https?://[^\s]+`)
	bareDomain  = regexp.MustCompile(`\b([a-z0-9-]+\.(com|org|net|io|co|dev))\b`)
	quoted      = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

// Site maps a name mentioned in a goal to a homepage.
type Site struct {
	Name    string
	URL     string
	pattern *regexp.Regexp
}

// NewSite matches name case-insensitively anywhere in a goal.
func NewSite(name, url string) Site {
	return Site{
		Name:    name,
		URL:     url,
		pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(strings.TrimSpace(name))),
	}
}

// KnownSites is the built-in lookup table, checked in order.
var KnownSites = []Site{
	NewSite("rotten tomatoes", "https://www.rottentomatoes.com"),
	NewSite("imdb", "https://www.imdb.com"),
	NewSite("github", "https://github.com"),
	NewSite("stack overflow", "https://stackoverflow.com"),
	NewSite("reddit", "https://www.reddit.com"),
	NewSite("twitter", "https://twitter.com"),
	NewSite("youtube", "https://www.youtube.com"),
	NewSite("amazon", "https://www.amazon.com"),
	NewSite("wikipedia", "https://en.wikipedia.org"),
	NewSite("linkedin", "https://www.linkedin.com"),
}

// Planner expands goals. The zero value uses KnownSites only.
type Planner struct {
	sites []Site
}

// New returns a planner that consults extra before KnownSites.
func New(extra ...Site) *Planner {
	sites := make([]Site, 0, len(extra)+len(KnownSites))
	sites = append(sites, extra...)
	sites = append(sites, KnownSites...)
	return &Planner{sites: sites}
}

// SitesFromMap builds Sites from a name→URL table, sorted by name so the
// match order is stable.
func SitesFromMap(m map[string]string) []Site {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Site, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" || m[name] == "" {
			continue
		}
		out = append(out, NewSite(name, m[name]))
	}
	return out
}

// Expand plans goal. The result is never empty and step indices start at 1.
func (p *Planner) Expand(goal string) []types.PlannedStep {
	lower := strings.ToLower(goal)

	switch {
	case strings.Contains(lower, "fill") && strings.Contains(lower, "form"):
		url, ok := p.ResolveURL(goal)
		if !ok {
			return diagnostic(noFormURLThought, 100)
		}
		return number(
			step(fmt.Sprintf("Navigate to %s", url), tools.KindNavigate, map[string]any{"url": url}),
			step("Wait for form fields", tools.KindWaitFor, map[string]any{"selector": "form, input", "timeoutMs": 5000}),
		)

	case strings.Contains(lower, "click"):
		selector := "button"
		if m := quoted.FindStringSubmatch(goal); m != nil {
			selector = m[1]
		}
		return number(
			step(fmt.Sprintf("Click the element: %s", selector), tools.KindClick, map[string]any{"selector": selector}),
		)

	case strings.Contains(lower, "extract") || strings.Contains(lower, "scrape"):
		url, ok := p.ResolveURL(goal)
		if !ok {
			return diagnostic(noExtractURLThought, 100)
		}
		return number(
			step(fmt.Sprintf("Navigate to %s", url), tools.KindNavigate, map[string]any{"url": url}),
			step("Wait for content to load", tools.KindWaitFor, map[string]any{"selector": "body", "timeoutMs": 5000}),
			step("Extract content from the page", tools.KindExtract, map[string]any{"selector": ExtractSelector, "attr": string(tools.AttrText)}),
		)
	}
	return diagnostic(unknownGoalThought, 1000)
}

// ResolveURL finds the page a goal refers to: an explicit http(s) URL, then
// a known site name, then a bare domain such as example.com.
func (p *Planner) ResolveURL(goal string) (string, bool) {
	if u := explicitURL.FindString(goal); u != "" {
		return u, true
	}

	lower := strings.ToLower(goal)
	sites := p.sites
	if sites == nil {
		sites = KnownSites
	}
	for _, s := range sites {
		if s.pattern != nil && s.pattern.MatchString(lower) {
			return s.URL, true
		}
	}

	if d := bareDomain.FindString(lower); d != "" {
		return "https://" + d, true
	}
	return "", false
}

func step(thought string, kind tools.Kind, args map[string]any) types.PlannedStep {
	return types.PlannedStep{
		Thought:  thought,
		ToolCall: types.ToolCall{Name: string(kind), Args: args},
	}
}

// diagnostic is the single no-op step for goals that cannot be planned.
func diagnostic(thought string, timeoutMs int) []types.PlannedStep {
	s := step(thought, tools.KindWaitFor, map[string]any{"selector": "body", "timeoutMs": timeoutMs})
	s.Diagnostic = true
	return number(s)
}

func number(steps ...types.PlannedStep) []types.PlannedStep {
	for i := range steps {
		steps[i].Index = i + 1
	}
	return steps
}
