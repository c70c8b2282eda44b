package executor

import (
	"errors"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/entrhq/lumina/pkg/transport"
	"github.com/entrhq/lumina/pkg/types"
)

// ErrPickerInactive is returned for picker input while no session is open.
var ErrPickerInactive = errors.New("selector picker is not active")

// Overlay is the page-side presentation of a picker session.
type Overlay interface {
	Show() error
	Hide() error
}

// Picker is the interactive selector-pick session of one page. At most one
// session is open at a time.
type Picker struct {
	mu       sync.Mutex
	reporter transport.Reporter
	overlay  Overlay
	active   bool
	hovered  string
}

// NewPicker reports picked selectors through reporter. overlay may be nil.
func NewPicker(reporter transport.Reporter, overlay Overlay) *Picker {
	return &Picker{reporter: reporter, overlay: overlay}
}

// Toggle opens or closes the session. Opening an open session and closing a
// closed one are no-ops that still succeed.
func (p *Picker) Toggle(enabled bool) types.ToolResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case enabled && !p.active:
		if p.overlay != nil {
			if err := p.overlay.Show(); err != nil {
				return types.Failf("Picker toggle failed: %v", err)
			}
		}
		p.active = true
		p.hovered = ""
		debugLog.Infof("picker enabled")
		return types.Ok(map[string]any{"enabled": true})
	case !enabled && p.active:
		p.endLocked()
		return types.Ok(map[string]any{"enabled": false})
	}
	return types.ToolResult{Success: true}
}

func (p *Picker) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Hover makes n the pick candidate and returns its selector for labelling.
func (p *Picker) Hover(doc *goquery.Document, n *html.Node) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return "", ErrPickerInactive
	}
	if n == nil || n.Type != html.ElementNode {
		return p.hovered, nil
	}
	p.hovered = GenerateSelector(doc, n)
	return p.hovered, nil
}

// Commit reports the hovered selector and closes the session. Without a
// hovered element it does nothing.
func (p *Picker) Commit() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrPickerInactive
	}
	if p.hovered == "" {
		p.mu.Unlock()
		return nil
	}
	selector := p.hovered
	p.endLocked()
	p.mu.Unlock()

	return p.report(&selector)
}

// Cancel reports a null selector and closes the session.
func (p *Picker) Cancel() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrPickerInactive
	}
	p.endLocked()
	p.mu.Unlock()

	return p.report(nil)
}

func (p *Picker) endLocked() {
	p.active = false
	p.hovered = ""
	if p.overlay != nil {
		if err := p.overlay.Hide(); err != nil {
			debugLog.Warnf("failed to hide picker overlay: %v", err)
		}
	}
	debugLog.Infof("picker disabled")
}

func (p *Picker) report(selector *string) error {
	if p.reporter == nil {
		return nil
	}
	msg, err := transport.NewMessage(types.CommandPickerResult, types.PickerResultPayload{Selector: selector})
	if err != nil {
		return err
	}
	return p.reporter.Report(msg)
}
