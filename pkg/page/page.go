// Package page abstracts the document an executor acts on. The live
// implementation drives a browser tab; Static holds a parsed HTML document
// and is used for offline runs and tests.
package page

import (
	"fmt"
	"time"

	"github.com/andybalholm/cascadia"
)

// Page is a loaded document.
type Page interface {
	// QueryAll returns every element matching selector in document order.
	// An unparseable selector is an error; no match is an empty slice.
	QueryAll(selector string) ([]Element, error)

	// ScrollTo scrolls the viewport to y and returns the resulting offset.
	ScrollTo(y float64) (float64, error)
	ScrollY() (float64, error)

	// HTML returns the serialized document.
	HTML() (string, error)
	Title() (string, error)
	URL() (string, error)

	// Highlight outlines every match of selector for d.
	Highlight(selector string, d time.Duration) error
}

// Element is one node of a Page.
type Element interface {
	// TagName is lower case.
	TagName() (string, error)

	// Text is the trimmed text content.
	Text() (string, error)

	// Href is the resolved link target, empty when absent.
	Href() (string, error)

	// Value is the current form value, empty for non-form elements.
	Value() (string, error)

	ScrollIntoView() error
	Click() error
	Focus() error

	// SetValue replaces the form value and fires input and change events.
	SetValue(v string) error
}

// CompileSelector parses a CSS selector group.
func CompileSelector(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel, nil
}
