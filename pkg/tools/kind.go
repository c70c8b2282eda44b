// Package tools defines the closed set of page tools and their typed arguments.
//
// Tool calls arrive by name with a loose argument map (from the planner or a UI
// caller). Parse turns them into one of the typed Call values below, so every
// consumer switches over a fixed set of kinds instead of raw strings.
package tools

import (
	"errors"
	"fmt"
)

// Kind identifies a page tool.
type Kind string

const (
	KindNavigate         Kind = "navigate"
	KindClick            Kind = "click"
	KindType             Kind = "type"
	KindExtract          Kind = "extract"
	KindWaitFor          Kind = "waitFor"
	KindScrollTo         Kind = "scrollTo"
	KindExtractTables    Kind = "extractTables"
	KindFindAllLinks     Kind = "findAllLinks"
	KindExtractPrices    Kind = "extractPrices"
	KindFindContactInfo  Kind = "findContactInfo"
	KindSummarizePage    Kind = "summarizePage"
	KindValidateSelector Kind = "validateSelector"
)

// Kinds lists every tool kind in a stable order.
var Kinds = []Kind{
	KindNavigate,
	KindClick,
	KindType,
	KindExtract,
	KindWaitFor,
	KindScrollTo,
	KindExtractTables,
	KindFindAllLinks,
	KindExtractPrices,
	KindFindContactInfo,
	KindSummarizePage,
	KindValidateSelector,
}

// ErrUnknownTool is returned by Parse for names outside Kinds.
var ErrUnknownTool = errors.New("unknown tool")

// ParseKind resolves a tool name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// Coordinated reports whether the coordinator performs the tool itself rather
// than delegating it to the page executor.
func (k Kind) Coordinated() bool {
	return k == KindNavigate
}

// Mutates reports whether the tool acts on the page's content or form
// state. Navigation and scrolling only move the view.
func (k Kind) Mutates() bool {
	switch k {
	case KindClick, KindType:
		return true
	default:
		return false
	}
}
