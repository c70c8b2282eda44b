package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/entrhq/lumina/pkg/page"
)

var (
	testAttrs     = []string{"data-testid", "data-test", "data-cy", "data-qa"}
	semanticAttrs = []string{"name", "role", "type", "aria-label", "placeholder"}
	stateClass    = regexp.MustCompile(`^(active|hover|focus|selected|open|show|hide)`)
)

// GenerateSelector returns a CSS selector for n within doc. It prefers, in
// order: a unique id, a unique test-automation attribute, a unique class or
// class list, a unique tag-qualified class list, a unique tag plus semantic
// attribute, and finally the parent's selector plus an :nth-child step.
func GenerateSelector(doc *goquery.Document, n *html.Node) string {
	unique := func(sel string) bool { return countMatches(doc, sel) == 1 }
	tag := strings.ToLower(n.Data)

	if id, ok := attrOf(n, "id"); ok && id != "" {
		if sel := "#" + id; unique(sel) {
			return sel
		}
	}

	for _, a := range testAttrs {
		if v, ok := attrOf(n, a); ok {
			if sel := fmt.Sprintf(`[%s="%s"]`, a, quoteAttr(v)); unique(sel) {
				return sel
			}
		}
	}

	if classes := meaningfulClasses(n); len(classes) > 0 {
		for _, c := range classes {
			if sel := "." + c; unique(sel) {
				return sel
			}
		}
		combined := "." + strings.Join(classes, ".")
		if unique(combined) {
			return combined
		}
		if sel := tag + combined; unique(sel) {
			return sel
		}
	}

	for _, a := range semanticAttrs {
		if v, ok := attrOf(n, a); ok {
			if sel := fmt.Sprintf(`%s[%s="%s"]`, tag, a, quoteAttr(v)); unique(sel) {
				return sel
			}
		}
	}

	parent := n.Parent
	if parent != nil && parent.Type == html.ElementNode {
		index := 0
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			index++
			if c == n {
				break
			}
		}
		return fmt.Sprintf("%s > :nth-child(%d)", GenerateSelector(doc, parent), index)
	}
	return tag
}

// countMatches returns -1 for selectors that do not parse.
func countMatches(doc *goquery.Document, selector string) int {
	sel, err := page.CompileSelector(selector)
	if err != nil {
		return -1
	}
	return doc.FindMatcher(sel).Length()
}

func meaningfulClasses(n *html.Node) []string {
	raw, _ := attrOf(n, "class")
	var out []string
	for _, c := range strings.Fields(raw) {
		if !stateClass.MatchString(c) {
			out = append(out, c)
		}
	}
	return out
}

func attrOf(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func quoteAttr(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}

// NodeAtPath walks from the document element following element-child
// indices (0-based). It returns nil when the path leaves the tree.
func NodeAtPath(doc *goquery.Document, path []int) *html.Node {
	root := doc.Find("html")
	if root.Length() == 0 {
		return nil
	}
	n := root.Nodes[0]
	for _, want := range path {
		var next *html.Node
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if i == want {
				next = c
				break
			}
			i++
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}
