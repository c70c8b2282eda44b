package executor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pickHTML = `<html><body>
<div id="main">
  <button id="dup">A</button><button id="dup">B</button>
  <span data-testid="price">9</span>
  <p class="lead active">Intro</p>
  <p class="note small">x</p><p class="note">y</p><p class="small">z</p>
  <em class="tag">t</em><span class="tag">s</span>
  <input type="email" name="email">
  <input type="text">
  <ul><li>one</li><li>two</li></ul>
</div>
</body></html>`

func loadDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func selectorFor(t *testing.T, doc *goquery.Document, css string, nth int) string {
	t.Helper()
	sel := doc.Find(css)
	require.Greater(t, sel.Length(), nth, css)
	return GenerateSelector(doc, sel.Nodes[nth])
}

func TestGenerateSelectorPreferenceOrder(t *testing.T) {
	doc := loadDoc(t, pickHTML)

	tests := []struct {
		name string
		css  string
		nth  int
		want string
	}{
		{"unique id", "div", 0, "#main"},
		{"test attribute", "span[data-testid]", 0, `[data-testid="price"]`},
		{"state classes ignored", "p.lead", 0, ".lead"},
		{"combined classes", "p.note.small", 0, ".note.small"},
		{"semantic attribute", "input[name=email]", 0, `input[name="email"]`},
		{"type attribute", "input", 1, `input[type="text"]`},
		{"structural fallback", "li", 1, "#main > :nth-child(12) > :nth-child(2)"},
		{"duplicate id falls through", "button", 1, "#main > :nth-child(2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectorFor(t, doc, tt.css, tt.nth))
		})
	}
}

func TestGenerateSelectorTagQualifiedClass(t *testing.T) {
	doc := loadDoc(t, `<body><em class="tag">t</em><span class="tag">s</span></body>`)
	assert.Equal(t, "em.tag", selectorFor(t, doc, "em", 0))
}

func TestGeneratedSelectorsResolveToTheElement(t *testing.T) {
	doc := loadDoc(t, pickHTML)
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		sel := GenerateSelector(doc, s.Nodes[0])
		matched := doc.Find(sel)
		require.Equal(t, 1, matched.Length(), sel)
		assert.Same(t, s.Nodes[0], matched.Nodes[0], sel)
	})
}

func TestNodeAtPath(t *testing.T) {
	doc := loadDoc(t, pickHTML)

	body := NodeAtPath(doc, []int{1})
	require.NotNil(t, body)
	assert.Equal(t, "body", body.Data)

	main := NodeAtPath(doc, []int{1, 0})
	require.NotNil(t, main)
	assert.Equal(t, "#main", GenerateSelector(doc, main))

	assert.Nil(t, NodeAtPath(doc, []int{1, 9}))
}
