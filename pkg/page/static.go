package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Static is an in-memory Page over a parsed document. Form values and
// scroll position live on the Static, not in the markup. It is safe for
// concurrent use.
type Static struct {
	mu      sync.RWMutex
	doc     *goquery.Document
	url     string
	scrollY float64
	values  map[*html.Node]string
	focused *html.Node

	clicks     []string
	highlights []string
	onClick    func(el *StaticElement)

	// outlined maps highlighted nodes to the Highlight call that drew them.
	outlined map[*html.Node]uint64
	drawSeq  uint64
}

// NewStatic parses markup as the document at pageURL.
func NewStatic(pageURL, markup string) (*Static, error) {
	s := &Static{}
	if err := s.Load(pageURL, markup); err != nil {
		return nil, err
	}
	return s, nil
}

// MustStatic is NewStatic for tests and fixtures.
func MustStatic(pageURL, markup string) *Static {
	s, err := NewStatic(pageURL, markup)
	if err != nil {
		panic(err)
	}
	return s
}

// Load replaces the document. Elements obtained earlier keep pointing at the
// old tree.
func (s *Static) Load(pageURL, markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.url = pageURL
	s.scrollY = 0
	s.values = make(map[*html.Node]string)
	s.focused = nil
	s.outlined = make(map[*html.Node]uint64)
	return nil
}

// Mutate runs fn against the live document, e.g. to append nodes the way a
// script would.
func (s *Static) Mutate(fn func(doc *goquery.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// OnClick registers a hook fired after every Click.
func (s *Static) OnClick(fn func(el *StaticElement)) {
	s.mu.Lock()
	s.onClick = fn
	s.mu.Unlock()
}

// Document returns the current parsed document.
func (s *Static) Document() *goquery.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Clicks lists the outer HTML of clicked elements, oldest first.
func (s *Static) Clicks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.clicks...)
}

// Highlights lists selectors passed to Highlight, oldest first.
func (s *Static) Highlights() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.highlights...)
}

func (s *Static) QueryAll(selector string) ([]Element, error) {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.doc.FindMatcher(sel)
	out := make([]Element, 0, found.Length())
	for _, n := range found.Nodes {
		out = append(out, &StaticElement{page: s, node: n})
	}
	return out, nil
}

func (s *Static) ScrollTo(y float64) (float64, error) {
	if y < 0 {
		y = 0
	}
	s.mu.Lock()
	s.scrollY = y
	s.mu.Unlock()
	return y, nil
}

func (s *Static) ScrollY() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scrollY, nil
}

func (s *Static) HTML() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return goquery.OuterHtml(s.doc.Selection)
}

func (s *Static) Title() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *Static) URL() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url, nil
}

// Highlight outlines every match for d. A new call replaces the previous
// highlight, and each expiry only clears the outline its own call drew. A
// non-positive d keeps the outline until the next call.
func (s *Static) Highlight(selector string, d time.Duration) error {
	sel, err := CompileSelector(selector)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.highlights = append(s.highlights, selector)
	s.drawSeq++
	seq := s.drawSeq
	s.outlined = make(map[*html.Node]uint64)
	for _, n := range s.doc.FindMatcher(sel).Nodes {
		s.outlined[n] = seq
	}
	s.mu.Unlock()

	if d > 0 {
		time.AfterFunc(d, func() { s.clearOutline(seq) })
	}
	return nil
}

func (s *Static) clearOutline(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, drawn := range s.outlined {
		if drawn == seq {
			delete(s.outlined, n)
		}
	}
}

// Outlined counts the elements currently highlighted.
func (s *Static) Outlined() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outlined)
}

// StaticElement is an Element of a Static page.
type StaticElement struct {
	page *Static
	node *html.Node
}

// Node exposes the underlying parsed node.
func (e *StaticElement) Node() *html.Node {
	return e.node
}

func (e *StaticElement) TagName() (string, error) {
	return strings.ToLower(e.node.Data), nil
}

func (e *StaticElement) Text() (string, error) {
	e.page.mu.RLock()
	defer e.page.mu.RUnlock()
	return strings.TrimSpace(goquery.NewDocumentFromNode(e.node).Text()), nil
}

func (e *StaticElement) Href() (string, error) {
	e.page.mu.RLock()
	defer e.page.mu.RUnlock()
	href, ok := attr(e.node, "href")
	if !ok {
		return "", nil
	}
	return resolveURL(e.page.url, href), nil
}

func (e *StaticElement) Value() (string, error) {
	e.page.mu.RLock()
	defer e.page.mu.RUnlock()
	return e.page.valueLocked(e.node), nil
}

func (e *StaticElement) ScrollIntoView() error {
	return nil
}

func (e *StaticElement) Click() error {
	e.page.mu.Lock()
	var buf bytes.Buffer
	_ = html.Render(&buf, e.node)
	e.page.clicks = append(e.page.clicks, buf.String())
	hook := e.page.onClick
	e.page.mu.Unlock()

	if hook != nil {
		hook(e)
	}
	return nil
}

func (e *StaticElement) Focus() error {
	e.page.mu.Lock()
	e.page.focused = e.node
	e.page.mu.Unlock()
	return nil
}

func (e *StaticElement) SetValue(v string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if !isFormControl(e.node) {
		return fmt.Errorf("element <%s> has no value", e.node.Data)
	}
	e.page.values[e.node] = v
	return nil
}

func (s *Static) valueLocked(n *html.Node) string {
	if v, ok := s.values[n]; ok {
		return v
	}
	switch strings.ToLower(n.Data) {
	case "input", "option", "button":
		v, _ := attr(n, "value")
		return v
	case "textarea":
		return goquery.NewDocumentFromNode(n).Text()
	case "select":
		opts := goquery.NewDocumentFromNode(n).Find("option")
		chosen := opts.Filter("[selected]").First()
		if chosen.Length() == 0 {
			chosen = opts.First()
		}
		if chosen.Length() == 0 {
			return ""
		}
		if v, ok := chosen.Attr("value"); ok {
			return v
		}
		return strings.TrimSpace(chosen.Text())
	}
	return ""
}

func isFormControl(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// resolveURL resolves href against base the way a browser fills in an
// anchor's href property.
func resolveURL(base, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if u.IsAbs() || base == "" {
		return u.String()
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	return bu.ResolveReference(u).String()
}

var (
	_ Page    = (*Static)(nil)
	_ Element = (*StaticElement)(nil)
)
