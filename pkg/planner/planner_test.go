package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/lumina/pkg/tools"
)

func TestExpandExtractFromWikipedia(t *testing.T) {
	steps := New().Expand("Extract from Wikipedia")
	require.Len(t, steps, 3)

	assert.Equal(t, 1, steps[0].Index)
	assert.Equal(t, "navigate", steps[0].ToolCall.Name)
	assert.Equal(t, "https://en.wikipedia.org", steps[0].ToolCall.Args["url"])

	assert.Equal(t, "waitFor", steps[1].ToolCall.Name)
	assert.Equal(t, "body", steps[1].ToolCall.Args["selector"])

	assert.Equal(t, "extract", steps[2].ToolCall.Name)
	assert.Equal(t, "h1, h2, h3", steps[2].ToolCall.Args["selector"])
	assert.Equal(t, 3, steps[2].Index)

	for _, s := range steps {
		assert.False(t, s.Diagnostic)
		_, err := tools.Parse(s.ToolCall.Name, s.ToolCall.Args)
		assert.NoError(t, err, "step %d should parse", s.Index)
	}
}

func TestExpandClick(t *testing.T) {
	tests := []struct {
		goal     string
		selector string
	}{
		{`click "#submit"`, "#submit"},
		{`Please CLICK the 'a.next' link`, "a.next"},
		{"click the thing", "button"},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			steps := New().Expand(tt.goal)
			require.Len(t, steps, 1)
			assert.Equal(t, "click", steps[0].ToolCall.Name)
			assert.Equal(t, tt.selector, steps[0].ToolCall.Args["selector"])
			assert.Equal(t, "Click the element: "+tt.selector, steps[0].Thought)
		})
	}
}

func TestExpandFillForm(t *testing.T) {
	steps := New().Expand("Fill the form at https://example.com/signup")
	require.Len(t, steps, 2)
	assert.Equal(t, "https://example.com/signup", steps[0].ToolCall.Args["url"])
	assert.Equal(t, "form, input", steps[1].ToolCall.Args["selector"])
	assert.Equal(t, 5000, steps[1].ToolCall.Args["timeoutMs"])
}

func TestExpandFillFormWithoutURL(t *testing.T) {
	steps := New().Expand("fill in the form please")
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Diagnostic)
	assert.Contains(t, steps[0].Thought, "No URL found")
}

func TestExpandNeverEmpty(t *testing.T) {
	for _, goal := range []string{"", "   ", "do something clever", "extract stuff", "scrape"} {
		steps := New().Expand(goal)
		require.Len(t, steps, 1, "goal %q", goal)
		assert.True(t, steps[0].Diagnostic)
		assert.Equal(t, "waitFor", steps[0].ToolCall.Name)
		assert.Equal(t, 1, steps[0].Index)
	}
}

func TestResolveURL(t *testing.T) {
	p := New()
	tests := []struct {
		goal string
		want string
	}{
		{"scrape http://Example.com/Path now", "http://Example.com/Path"},
		{"extract from Rotten Tomatoes", "https://www.rottentomatoes.com"},
		{"extract from golang.dev", "https://golang.dev"},
		{"extract from News.ycombinator.com", "https://ycombinator.com"},
		{"look at imdb and github", "https://www.imdb.com"},
	}
	for _, tt := range tests {
		got, ok := p.ResolveURL(tt.goal)
		assert.True(t, ok, tt.goal)
		assert.Equal(t, tt.want, got, tt.goal)
	}

	_, ok := p.ResolveURL("nothing to see")
	assert.False(t, ok)
}

func TestExtraSitesTakePrecedence(t *testing.T) {
	p := New(SitesFromMap(map[string]string{
		"wikipedia": "https://de.wikipedia.org",
		"intranet":  "https://intranet.local",
		"":          "https://ignored",
	})...)

	url, ok := p.ResolveURL("extract from Wikipedia")
	require.True(t, ok)
	assert.Equal(t, "https://de.wikipedia.org", url)

	url, ok = p.ResolveURL("scrape the INTRANET")
	require.True(t, ok)
	assert.Equal(t, "https://intranet.local", url)
}

func TestZeroValuePlanner(t *testing.T) {
	var p Planner
	steps := p.Expand("extract from github")
	require.Len(t, steps, 3)
	assert.Equal(t, "https://github.com", steps[0].ToolCall.Args["url"])
}
