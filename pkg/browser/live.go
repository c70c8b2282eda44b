package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/lumina/pkg/page"
)

const (
	scrollToJS  = `y => { window.scrollTo(0, y); return window.scrollY; }`
	scrollYJS   = `() => window.scrollY`
	// highlightJS clears any earlier highlight before drawing, and each
	// timer only restores elements still carrying its own token.
	highlightJS = `([selector, ms]) => {
	const token = Date.now() + ':' + Math.random();
	const restore = el => {
		el.style.outline = el.dataset.luminaOutline || '';
		el.style.outlineOffset = el.dataset.luminaOutlineOffset || '';
		delete el.dataset.luminaOutline;
		delete el.dataset.luminaOutlineOffset;
		delete el.dataset.luminaHighlight;
	};
	document.querySelectorAll('[data-lumina-highlight]').forEach(restore);
	const els = document.querySelectorAll(selector);
	els.forEach(el => {
		el.dataset.luminaOutline = el.style.outline;
		el.dataset.luminaOutlineOffset = el.style.outlineOffset;
		el.dataset.luminaHighlight = token;
		el.style.outline = '3px solid #ff6b35';
		el.style.outlineOffset = '2px';
	});
	setTimeout(() => {
		document.querySelectorAll('[data-lumina-highlight]').forEach(el => {
			if (el.dataset.luminaHighlight === token) restore(el);
		});
	}, ms);
	return els.length;
}`
	tagNameJS  = `el => el.tagName.toLowerCase()`
	hrefJS     = `el => el.href ? String(el.href) : ''`
	valueJS    = `el => ('value' in el && el.value != null) ? String(el.value) : ''`
	setValueJS = `(el, v) => {
	if (!('value' in el)) throw new Error('element <' + el.tagName.toLowerCase() + '> has no value');
	el.value = v;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
}`
)

// livePage adapts a Playwright page to page.Page.
type livePage struct {
	pw playwright.Page
}

func newLivePage(p playwright.Page) *livePage {
	return &livePage{pw: p}
}

// QueryAll uses the css engine so selectors behave as querySelectorAll.
func (p *livePage) QueryAll(selector string) ([]page.Element, error) {
	handles, err := p.pw.QuerySelectorAll("css=" + selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	els := make([]page.Element, len(handles))
	for i, h := range handles {
		els[i] = &liveElement{h: h}
	}
	return els, nil
}

func (p *livePage) ScrollTo(y float64) (float64, error) {
	v, err := p.pw.Evaluate(scrollToJS, y)
	if err != nil {
		return 0, err
	}
	return toFloat(v), nil
}

func (p *livePage) ScrollY() (float64, error) {
	v, err := p.pw.Evaluate(scrollYJS)
	if err != nil {
		return 0, err
	}
	return toFloat(v), nil
}

func (p *livePage) HTML() (string, error) {
	return p.pw.Content()
}

func (p *livePage) Title() (string, error) {
	return p.pw.Title()
}

func (p *livePage) URL() (string, error) {
	return p.pw.URL(), nil
}

func (p *livePage) Highlight(selector string, d time.Duration) error {
	_, err := p.pw.Evaluate(highlightJS, []any{selector, d.Milliseconds()})
	return err
}

// liveElement adapts an element handle to page.Element.
type liveElement struct {
	h playwright.ElementHandle
}

func (e *liveElement) TagName() (string, error) {
	return e.evalString(tagNameJS)
}

func (e *liveElement) Text() (string, error) {
	s, err := e.h.TextContent()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (e *liveElement) Href() (string, error) {
	return e.evalString(hrefJS)
}

func (e *liveElement) Value() (string, error) {
	return e.evalString(valueJS)
}

func (e *liveElement) ScrollIntoView() error {
	return e.h.ScrollIntoViewIfNeeded()
}

func (e *liveElement) Click() error {
	return e.h.Click()
}

func (e *liveElement) Focus() error {
	return e.h.Focus()
}

func (e *liveElement) SetValue(v string) error {
	_, err := e.h.Evaluate(setValueJS, v)
	return err
}

func (e *liveElement) evalString(js string) (string, error) {
	v, err := e.h.Evaluate(js)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// toFloat normalises a number returned from the page. Non-numbers are 0.
func toFloat(v any) float64 {
	f, _ := asNumber(v)
	return f
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

var _ page.Page = (*livePage)(nil)
