package page

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Tags never rendered as text.
var hiddenTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// SummaryExcludedTags are dropped, with their subtrees, before summarizing a
// page.
var SummaryExcludedTags = []string{"script", "style", "nav", "header", "footer", "iframe", "noscript"}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "ul": true, "body": true,
}

var (
	blankRun     = regexp.MustCompile(`[ \t\f\r\x{00a0}]+`)
	newlineRun   = regexp.MustCompile(`\n\s*\n+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// InnerText approximates the rendered text of root: hidden elements are
// skipped and block elements break lines.
func InnerText(root *html.Node) string {
	return renderText(root, hiddenTags)
}

// SummaryText is the text of root with SummaryExcludedTags removed and all
// whitespace collapsed to single spaces.
func SummaryText(root *html.Node) string {
	skip := make(map[string]bool, len(hiddenTags)+len(SummaryExcludedTags))
	for tag := range hiddenTags {
		skip[tag] = true
	}
	for _, tag := range SummaryExcludedTags {
		skip[tag] = true
	}
	text := renderText(root, skip)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func renderText(root *html.Node, skip map[string]bool) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			return
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if skip[tag] {
				return
			}
			if tag == "br" {
				b.WriteByte('\n')
				return
			}
			if blockTags[tag] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			} else if tag == "td" || tag == "th" {
				defer b.WriteByte('\t')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRun.ReplaceAllString(line, " "))
	}
	text := strings.Join(lines, "\n")
	return strings.TrimSpace(newlineRun.ReplaceAllString(text, "\n"))
}

// Truncate cuts s to max runes and appends "..." when it was longer.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Clip cuts s to at most max runes.
func Clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
