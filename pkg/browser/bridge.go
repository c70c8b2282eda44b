package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/lumina/pkg/executor"
)

const pickBinding = "__luminaPick"

// pickerScript is installed in every document. While enabled it reports the
// hovered element as a path of element-child indices from <html>, commits on
// click and cancels on Escape.
const pickerScript = `(() => {
	if (window.__luminaPicker) return;
	let on = false, box = null, label = null;
	const pathOf = el => {
		const path = [];
		while (el && el !== document.documentElement) {
			const parent = el.parentElement;
			if (!parent) break;
			path.unshift(Array.prototype.indexOf.call(parent.children, el));
			el = parent;
		}
		return path;
	};
	const draw = (el, text) => {
		const r = el.getBoundingClientRect();
		Object.assign(box.style, { top: r.top + 'px', left: r.left + 'px', width: r.width + 'px', height: r.height + 'px', display: 'block' });
		label.textContent = text || '';
		Object.assign(label.style, { top: Math.max(0, r.top - 22) + 'px', left: r.left + 'px', display: text ? 'block' : 'none' });
	};
	const over = async e => {
		if (!on || e.target === box || e.target === label) return;
		const selector = await window.` + pickBinding + `('hover', pathOf(e.target));
		draw(e.target, selector);
	};
	const click = e => {
		if (!on) return;
		e.preventDefault();
		e.stopPropagation();
		window.` + pickBinding + `('commit', []);
	};
	const key = e => {
		if (on && e.key === 'Escape') window.` + pickBinding + `('cancel', []);
	};
	window.__luminaPicker = {
		enable() {
			if (on) return;
			on = true;
			box = document.createElement('div');
			Object.assign(box.style, { position: 'fixed', pointerEvents: 'none', zIndex: 2147483646, border: '2px solid #ff6b35', background: 'rgba(255,107,53,0.12)', display: 'none' });
			label = document.createElement('div');
			Object.assign(label.style, { position: 'fixed', pointerEvents: 'none', zIndex: 2147483647, background: '#1f2937', color: '#fff', font: '12px monospace', padding: '2px 6px', borderRadius: '3px', display: 'none' });
			document.documentElement.append(box, label);
			document.addEventListener('mouseover', over, true);
			document.addEventListener('click', click, true);
			document.addEventListener('keydown', key, true);
		},
		disable() {
			if (!on) return;
			on = false;
			box && box.remove();
			label && label.remove();
			document.removeEventListener('mouseover', over, true);
			document.removeEventListener('click', click, true);
			document.removeEventListener('keydown', key, true);
		},
	};
})()`

// overlay shows and hides the injected picker UI.
type overlay struct {
	page playwright.Page
}

func (o *overlay) Show() error {
	_, err := o.page.Evaluate(`() => window.__luminaPicker && window.__luminaPicker.enable()`)
	return err
}

func (o *overlay) Hide() error {
	_, err := o.page.Evaluate(`() => window.__luminaPicker && window.__luminaPicker.disable()`)
	return err
}

// installPickerBridge exposes the callback the picker script reports to and
// installs the script in every document the page loads.
func installPickerBridge(p playwright.Page, picker *executor.Picker) error {
	b := &bridge{page: p, picker: picker}
	if err := p.ExposeFunction(pickBinding, b.call); err != nil {
		return fmt.Errorf("failed to expose picker binding: %w", err)
	}
	script := pickerScript
	if err := p.AddInitScript(playwright.Script{Content: &script}); err != nil {
		return fmt.Errorf("failed to install picker script: %w", err)
	}
	return nil
}

type bridge struct {
	page   playwright.Page
	picker *executor.Picker
}

// call receives (event, path) from the page. Hover answers with the
// generated selector so the overlay can label it.
func (b *bridge) call(args ...any) any {
	if len(args) == 0 {
		return nil
	}
	event, _ := args[0].(string)

	var err error
	switch event {
	case "hover":
		var path []int
		if len(args) > 1 {
			path = decodePath(args[1])
		}
		var selector string
		selector, err = b.hover(path)
		if err == nil {
			return selector
		}
	case "commit":
		err = b.picker.Commit()
	case "cancel":
		err = b.picker.Cancel()
	default:
		err = fmt.Errorf("unknown picker event %q", event)
	}
	if err != nil && !errors.Is(err, executor.ErrPickerInactive) {
		debugLog.Warnf("picker %s: %v", event, err)
	}
	return nil
}

// hover resolves path against a fresh parse of the serialized DOM. Paths
// are element-child indices from <html>, so they only match the live node
// while the parser rebuilds the same element tree; markup that scripts
// built in shapes the parser would reshape (a <div> inside a <p>, rows
// outside a <tbody>) can resolve to a neighbour or to nothing.
func (b *bridge) hover(path []int) (string, error) {
	markup, err := b.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	return b.picker.Hover(doc, executor.NodeAtPath(doc, path))
}

// decodePath converts the JSON array the page sends into indices. Anything
// that is not a non-negative number ends the path.
func decodePath(v any) []int {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	path := make([]int, 0, len(raw))
	for _, x := range raw {
		f, ok := asNumber(x)
		if !ok || f < 0 || f != float64(int(f)) {
			break
		}
		path = append(path, int(f))
	}
	return path
}
