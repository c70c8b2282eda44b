package executor

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/entrhq/lumina/pkg/page"
	"github.com/entrhq/lumina/pkg/tools"
	"github.com/entrhq/lumina/pkg/types"
)

const (
	maxPrices      = 100
	linkTextMax    = 100
	summaryTextMax = 3000
)

var (
	priceRe  = regexp.MustCompile(`(?i)(\$|€|£|¥)\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)|(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)\s*(USD|EUR|GBP)`)
	emailRe  = regexp.MustCompile(`(?i)\b[\w.-]+@[\w.-]+\.\w{2,}\b`)
	phoneRe  = regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	nonDigit = regexp.MustCompile(`\D`)
)

// snapshot is a parsed copy of the page taken for one mining call.
type snapshot struct {
	doc   *goquery.Document
	url   string
	title string
}

func (e *Executor) snapshot() (*snapshot, error) {
	markup, err := e.page.HTML()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	pageURL, err := e.page.URL()
	if err != nil {
		return nil, err
	}
	title, err := e.page.Title()
	if err != nil {
		return nil, err
	}
	return &snapshot{doc: doc, url: pageURL, title: title}, nil
}

func (s *snapshot) body() *html.Node {
	if body := s.doc.Find("body"); body.Length() > 0 {
		return body.Nodes[0]
	}
	return s.doc.Nodes[0]
}

func (e *Executor) mine(kind tools.Kind) types.ToolResult {
	snap, err := e.snapshot()
	if err != nil {
		return types.Failf("%v", err)
	}
	switch kind {
	case tools.KindExtractTables:
		return types.Ok(extractTables(snap))
	case tools.KindFindAllLinks:
		return types.Ok(findAllLinks(snap))
	case tools.KindExtractPrices:
		return types.Ok(extractPrices(page.InnerText(snap.body())))
	case tools.KindFindContactInfo:
		return types.Ok(findContactInfo(page.InnerText(snap.body())))
	case tools.KindSummarizePage:
		return types.Ok(PageSummary{
			Title: snap.title,
			URL:   snap.url,
			Text:  page.Truncate(page.SummaryText(snap.body()), summaryTextMax),
		})
	}
	return types.Failf("Unknown tool: %s", kind)
}

// Table is one extracted <table>. Index is 1-based.
type Table struct {
	Index       int        `json:"index"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
	RowCount    int        `json:"rowCount"`
	ColumnCount int        `json:"columnCount"`
}

type TablesResult struct {
	Found  int     `json:"found"`
	Tables []Table `json:"tables"`
}

// extractTables reads headers from the first row of a thead, or the first
// row of the table when there is none. The header row is not repeated in
// Rows.
func extractTables(snap *snapshot) TablesResult {
	out := TablesResult{Tables: []Table{}}
	snap.doc.Find("table").Each(func(i int, table *goquery.Selection) {
		headerRow := table.Find("thead tr").First()
		if headerRow.Length() == 0 {
			headerRow = table.Find("tr").First()
		}

		var headers []string
		headerRow.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(cell.Text()))
		})

		rows := [][]string{}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			if len(headers) > 0 && headerRow.Length() > 0 && row.Nodes[0] == headerRow.Nodes[0] {
				return
			}
			cells := row.Find("td, th")
			if cells.Length() == 0 {
				return
			}
			data := make([]string, 0, cells.Length())
			cells.Each(func(_ int, cell *goquery.Selection) {
				data = append(data, strings.TrimSpace(cell.Text()))
			})
			rows = append(rows, data)
		})

		columns := len(headers)
		if columns == 0 && len(rows) > 0 {
			columns = len(rows[0])
		}
		out.Tables = append(out.Tables, Table{
			Index:       i + 1,
			Headers:     headers,
			Rows:        rows,
			RowCount:    len(rows),
			ColumnCount: columns,
		})
	})
	out.Found = len(out.Tables)
	return out
}

type Link struct {
	Text       string `json:"text"`
	Href       string `json:"href"`
	Domain     string `json:"domain"`
	IsInternal bool   `json:"isInternal"`
}

type LinksResult struct {
	Total    int            `json:"total"`
	Internal int            `json:"internal"`
	External int            `json:"external"`
	Links    []Link         `json:"links"`
	ByDomain map[string]int `json:"byDomain"`
}

// findAllLinks classifies every a[href] against the page host. Links that do
// not resolve to a URL are skipped; ByDomain counts external hosts only.
func findAllLinks(snap *snapshot) LinksResult {
	out := LinksResult{Links: []Link{}, ByDomain: map[string]int{}}

	var current string
	var base *url.URL
	if u, err := url.Parse(snap.url); err == nil {
		base = u
		current = u.Hostname()
	}

	snap.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		raw, _ := a.Attr("href")
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if !u.IsAbs() {
			return
		}

		domain := u.Hostname()
		internal := domain == current || domain == ""
		if internal {
			out.Internal++
		} else {
			out.External++
			out.ByDomain[domain]++
		}
		if domain == "" {
			domain = current
		}
		out.Links = append(out.Links, Link{
			Text:       page.Clip(strings.TrimSpace(a.Text()), linkTextMax),
			Href:       u.String(),
			Domain:     domain,
			IsInternal: internal,
		})
	})
	out.Total = len(out.Links)
	return out
}

type Price struct {
	Text      string  `json:"text"`
	Currency  string  `json:"currency"`
	Amount    float64 `json:"amount"`
	Formatted string  `json:"formatted"`
}

type PricesResult struct {
	Found  int     `json:"found"`
	Prices []Price `json:"prices"`
}

// extractPrices finds monetary amounts in text, drops zero amounts and
// repeats of the same currency and amount, and sorts by amount, largest
// first. At most maxPrices are returned; Found counts all of them.
func extractPrices(text string) PricesResult {
	seen := make(map[string]bool)
	prices := []Price{}

	for _, m := range priceRe.FindAllStringSubmatch(text, -1) {
		full := m[0]
		currency, numeric := "$", ""
		switch {
		case m[1] != "":
			currency, numeric = m[1], m[2]
		case m[4] != "":
			currency, numeric = m[4], m[3]
		}
		switch {
		case strings.Contains(full, "€"):
			currency = "€"
		case strings.Contains(full, "£"):
			currency = "£"
		case strings.Contains(full, "¥"):
			currency = "¥"
		}

		amount, err := strconv.ParseFloat(strings.ReplaceAll(numeric, ",", ""), 64)
		if err != nil || amount <= 0 {
			continue
		}
		key := currency + strconv.FormatFloat(amount, 'f', -1, 64)
		if seen[key] {
			continue
		}
		seen[key] = true

		prices = append(prices, Price{
			Text:      strings.TrimSpace(full),
			Currency:  currency,
			Amount:    amount,
			Formatted: currency + strconv.FormatFloat(amount, 'f', 2, 64),
		})
	}

	sort.SliceStable(prices, func(i, j int) bool {
		return prices[i].Amount > prices[j].Amount
	})
	out := PricesResult{Found: len(prices), Prices: prices}
	if len(out.Prices) > maxPrices {
		out.Prices = out.Prices[:maxPrices]
	}
	return out
}

type ContactResult struct {
	Emails     []string `json:"emails"`
	Phones     []string `json:"phones"`
	EmailCount int      `json:"emailCount"`
	PhoneCount int      `json:"phoneCount"`
	Total      int      `json:"total"`
}

// findContactInfo collects distinct emails (lower-cased, image file names
// excluded) and phone numbers with at least ten digits, in first-seen order.
func findContactInfo(text string) ContactResult {
	emails := orderedSet{}
	for _, m := range emailRe.FindAllString(text, -1) {
		email := strings.ToLower(m)
		if strings.HasSuffix(email, ".png") || strings.HasSuffix(email, ".jpg") || strings.HasSuffix(email, ".gif") {
			continue
		}
		emails.add(email)
	}

	phones := orderedSet{}
	for _, m := range phoneRe.FindAllString(text, -1) {
		if len(nonDigit.ReplaceAllString(m, "")) >= 10 {
			phones.add(m)
		}
	}

	return ContactResult{
		Emails:     emails.items(),
		Phones:     phones.items(),
		EmailCount: len(emails.list),
		PhoneCount: len(phones.list),
		Total:      len(emails.list) + len(phones.list),
	}
}

type PageSummary struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

type orderedSet struct {
	seen map[string]bool
	list []string
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.list = append(s.list, v)
}

func (s *orderedSet) items() []string {
	if s.list == nil {
		return []string{}
	}
	return s.list
}
