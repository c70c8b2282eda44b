package executor

import (
	"context"
	"time"

	"github.com/entrhq/lumina/pkg/page"
	"github.com/entrhq/lumina/pkg/tools"
	"github.com/entrhq/lumina/pkg/types"
)

func (e *Executor) click(ctx context.Context, c tools.ClickArgs) types.ToolResult {
	els, err := e.page.QueryAll(c.Selector)
	if err != nil {
		return types.Failf("Click failed: %v", err)
	}
	if len(els) == 0 {
		return types.Failf("Element not found: %s", c.Selector)
	}
	if c.Nth >= len(els) {
		return types.Failf("Element at index %d not found (found %d total)", c.Nth, len(els))
	}
	el := els[c.Nth]

	if err := el.ScrollIntoView(); err != nil {
		return types.Failf("Click failed: %v", err)
	}
	if err := sleep(ctx, e.opts.ClickSettle); err != nil {
		return types.Failf("Click failed: %v", err)
	}
	if err := el.Click(); err != nil {
		return types.Failf("Click failed: %v", err)
	}

	tag, _ := el.TagName()
	text, _ := el.Text()
	return types.Ok(map[string]any{
		"selector": c.Selector,
		"index":    c.Nth,
		"tagName":  tag,
		"text":     page.Clip(text, 50),
	})
}

// typeText appends to the current value unless Clear is set.
func (e *Executor) typeText(ctx context.Context, c tools.TypeArgs) types.ToolResult {
	els, err := e.page.QueryAll(c.Selector)
	if err != nil {
		return types.Failf("Type failed: %v", err)
	}
	if len(els) == 0 {
		return types.Failf("Element not found: %s", c.Selector)
	}
	el := els[0]

	if err := el.ScrollIntoView(); err != nil {
		return types.Failf("Type failed: %v", err)
	}
	if err := sleep(ctx, e.opts.TypeSettle); err != nil {
		return types.Failf("Type failed: %v", err)
	}
	if err := el.Focus(); err != nil {
		return types.Failf("Type failed: %v", err)
	}

	value := c.Text
	if !c.Clear {
		current, err := el.Value()
		if err != nil {
			return types.Failf("Type failed: %v", err)
		}
		value = current + c.Text
	}
	if err := el.SetValue(value); err != nil {
		return types.Failf("Type failed: %v", err)
	}

	final, err := el.Value()
	if err != nil {
		return types.Failf("Type failed: %v", err)
	}
	return types.Ok(map[string]any{
		"selector":   c.Selector,
		"text":       c.Text,
		"finalValue": final,
	})
}

func (e *Executor) extract(c tools.ExtractArgs) types.ToolResult {
	els, err := e.page.QueryAll(c.Selector)
	if err != nil {
		return types.Failf("Extract failed: %v", err)
	}
	if len(els) == 0 {
		return types.Failf("No elements found: %s", c.Selector)
	}

	values := make([]string, 0, len(els))
	for _, el := range els {
		var v string
		switch c.Attr {
		case tools.AttrHref:
			v, err = el.Href()
		case tools.AttrValue:
			v, err = el.Value()
		default:
			v, err = el.Text()
		}
		if err != nil {
			return types.Failf("Extract failed: %v", err)
		}
		if v != "" {
			values = append(values, v)
		}
	}
	return types.Ok(values)
}

// waitFor polls until the selector matches or the timeout passes.
func (e *Executor) waitFor(ctx context.Context, c tools.WaitForArgs) types.ToolResult {
	start := time.Now()
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond

	found, err := e.exists(c.Selector)
	if err != nil {
		return types.Failf("WaitFor failed: %v", err)
	}
	if found {
		return types.Ok(map[string]any{"selector": c.Selector, "waitTime": 0})
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return types.Failf("WaitFor failed: %v", ctx.Err())
		case <-deadline.C:
			return types.Failf("Element not found within %dms: %s", c.TimeoutMs, c.Selector)
		case <-ticker.C:
			found, err := e.exists(c.Selector)
			if err != nil {
				return types.Failf("WaitFor failed: %v", err)
			}
			if found {
				return types.Ok(map[string]any{
					"selector": c.Selector,
					"waitTime": time.Since(start).Milliseconds(),
				})
			}
		}
	}
}

func (e *Executor) exists(selector string) (bool, error) {
	els, err := e.page.QueryAll(selector)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

func (e *Executor) scrollTo(ctx context.Context, c tools.ScrollToArgs) types.ToolResult {
	if c.IsOffset {
		if _, err := e.page.ScrollTo(c.Offset); err != nil {
			return types.Failf("ScrollTo failed: %v", err)
		}
		if err := sleep(ctx, e.opts.ScrollSettle); err != nil {
			return types.Failf("ScrollTo failed: %v", err)
		}
		y, err := e.page.ScrollY()
		if err != nil {
			return types.Failf("ScrollTo failed: %v", err)
		}
		return types.Ok(map[string]any{"scrollY": y})
	}

	els, err := e.page.QueryAll(c.Selector)
	if err != nil {
		return types.Failf("ScrollTo failed: %v", err)
	}
	if len(els) == 0 {
		return types.Failf("Element not found: %s", c.Selector)
	}
	if err := els[0].ScrollIntoView(); err != nil {
		return types.Failf("ScrollTo failed: %v", err)
	}
	if err := sleep(ctx, e.opts.ScrollSettle); err != nil {
		return types.Failf("ScrollTo failed: %v", err)
	}
	y, err := e.page.ScrollY()
	if err != nil {
		return types.Failf("ScrollTo failed: %v", err)
	}
	return types.Ok(map[string]any{"selector": c.Selector, "scrollY": y})
}

// validateSelector reports how many elements match. No match is a
// successful zero count.
func (e *Executor) validateSelector(selector string) types.ToolResult {
	els, err := e.page.QueryAll(selector)
	if err != nil {
		return types.Failf("Validation failed: %v", err)
	}
	if len(els) == 0 {
		return types.Ok(map[string]any{"count": 0, "selector": selector})
	}
	if err := els[0].ScrollIntoView(); err != nil {
		debugLog.Warnf("validateSelector: scroll failed: %v", err)
	}
	if err := e.page.Highlight(selector, e.opts.HighlightFor); err != nil {
		return types.Failf("Validation failed: %v", err)
	}
	return types.Ok(map[string]any{"count": len(els), "selector": selector})
}
