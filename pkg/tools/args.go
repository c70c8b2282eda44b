package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Default values applied while parsing arguments.
const (
	DefaultWaitTimeoutMs = 10000
	DefaultExtractAttr   = AttrText
)

// Attr selects what extract reads from each element.
type Attr string

const (
	AttrText  Attr = "text"
	AttrHref  Attr = "href"
	AttrValue Attr = "value"
)

// Call is a parsed tool invocation. The concrete types are the *Args structs
// in this file; the set is closed by the unexported marker method.
type Call interface {
	Kind() Kind
	isCall()
}

// NavigateArgs are the arguments of navigate.
type NavigateArgs struct {
	URL string `json:"url"`
}

// ClickArgs are the arguments of click.
type ClickArgs struct {
	Selector string `json:"selector"`
	Nth      int    `json:"nth"`
}

// TypeArgs are the arguments of type.
type TypeArgs struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Clear    bool   `json:"clear"`
}

// ExtractArgs are the arguments of extract.
type ExtractArgs struct {
	Selector string `json:"selector"`
	Attr     Attr   `json:"attr"`
}

// WaitForArgs are the arguments of waitFor.
type WaitForArgs struct {
	Selector  string `json:"selector"`
	TimeoutMs int    `json:"timeoutMs"`
}

// ScrollToArgs are the arguments of scrollTo. Exactly one of Offset and
// Selector is meaningful, depending on IsOffset.
type ScrollToArgs struct {
	IsOffset bool
	Offset   float64
	Selector string
}

// ValidateSelectorArgs are the arguments of validateSelector.
type ValidateSelectorArgs struct {
	Selector string `json:"selector"`
}

// PageQuery is a content-mining tool that takes no arguments.
type PageQuery struct {
	K Kind
}

func (NavigateArgs) Kind() Kind         { return KindNavigate }
func (ClickArgs) Kind() Kind            { return KindClick }
func (TypeArgs) Kind() Kind             { return KindType }
func (ExtractArgs) Kind() Kind          { return KindExtract }
func (WaitForArgs) Kind() Kind          { return KindWaitFor }
func (ScrollToArgs) Kind() Kind         { return KindScrollTo }
func (ValidateSelectorArgs) Kind() Kind { return KindValidateSelector }
func (q PageQuery) Kind() Kind          { return q.K }

func (NavigateArgs) isCall()         {}
func (ClickArgs) isCall()            {}
func (TypeArgs) isCall()             {}
func (ExtractArgs) isCall()          {}
func (WaitForArgs) isCall()          {}
func (ScrollToArgs) isCall()         {}
func (ValidateSelectorArgs) isCall() {}
func (PageQuery) isCall()            {}

// Parse validates a named tool call and decodes its arguments.
func Parse(name string, args map[string]any) (Call, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindNavigate:
		var a NavigateArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if a.URL == "" {
			return nil, fmt.Errorf("navigate: url is required")
		}
		return a, nil

	case KindClick:
		var a ClickArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if a.Selector == "" {
			return nil, fmt.Errorf("click: selector is required")
		}
		if a.Nth < 0 {
			return nil, fmt.Errorf("click: nth must not be negative")
		}
		return a, nil

	case KindType:
		var a TypeArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if a.Selector == "" {
			return nil, fmt.Errorf("type: selector is required")
		}
		return a, nil

	case KindExtract:
		var a ExtractArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if a.Selector == "" {
			return nil, fmt.Errorf("extract: selector is required")
		}
		switch a.Attr {
		case "":
			a.Attr = DefaultExtractAttr
		case AttrText, AttrHref, AttrValue:
		default:
			return nil, fmt.Errorf("extract: invalid attr %q (must be 'text', 'href', or 'value')", a.Attr)
		}
		return a, nil

	case KindWaitFor:
		var a WaitForArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if a.Selector == "" {
			return nil, fmt.Errorf("waitFor: selector is required")
		}
		if a.TimeoutMs <= 0 {
			a.TimeoutMs = DefaultWaitTimeoutMs
		}
		return a, nil

	case KindScrollTo:
		return parseScrollTo(args)

	case KindValidateSelector:
		var a ValidateSelectorArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if a.Selector == "" {
			return nil, fmt.Errorf("validateSelector: selector is required")
		}
		return a, nil

	case KindExtractTables, KindFindAllLinks, KindExtractPrices, KindFindContactInfo, KindSummarizePage:
		return PageQuery{K: kind}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// parseScrollTo accepts a numeric offset or a selector string. Numeric
// strings are selectors, not offsets.
func parseScrollTo(args map[string]any) (Call, error) {
	target, ok := args["target"]
	if !ok || target == nil {
		return nil, fmt.Errorf("scrollTo: target is required")
	}
	switch v := target.(type) {
	case float64:
		return ScrollToArgs{IsOffset: true, Offset: v}, nil
	case float32:
		return ScrollToArgs{IsOffset: true, Offset: float64(v)}, nil
	case int:
		return ScrollToArgs{IsOffset: true, Offset: float64(v)}, nil
	case int64:
		return ScrollToArgs{IsOffset: true, Offset: float64(v)}, nil
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, fmt.Errorf("scrollTo: invalid offset %q", v)
		}
		return ScrollToArgs{IsOffset: true, Offset: f}, nil
	case string:
		if v == "" {
			return nil, fmt.Errorf("scrollTo: target is required")
		}
		return ScrollToArgs{Selector: v}, nil
	default:
		return nil, fmt.Errorf("scrollTo: target must be a number or a selector string, got %T", target)
	}
}

// ToArgs renders a call back into the loose argument map used on the wire.
func ToArgs(call Call) map[string]any {
	switch c := call.(type) {
	case NavigateArgs:
		return map[string]any{"url": c.URL}
	case ClickArgs:
		return map[string]any{"selector": c.Selector, "nth": c.Nth}
	case TypeArgs:
		return map[string]any{"selector": c.Selector, "text": c.Text, "clear": c.Clear}
	case ExtractArgs:
		return map[string]any{"selector": c.Selector, "attr": string(c.Attr)}
	case WaitForArgs:
		return map[string]any{"selector": c.Selector, "timeoutMs": c.TimeoutMs}
	case ScrollToArgs:
		if c.IsOffset {
			return map[string]any{"target": c.Offset}
		}
		return map[string]any{"target": c.Selector}
	case ValidateSelectorArgs:
		return map[string]any{"selector": c.Selector}
	default:
		return map[string]any{}
	}
}

func decode(args map[string]any, v any) error {
	if len(args) == 0 {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
