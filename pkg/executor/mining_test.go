package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/lumina/pkg/page"
)

func mineWith(t *testing.T, markup, tool string) any {
	t.Helper()
	p, err := page.NewStatic("https://shop.example/list", markup)
	require.NoError(t, err)
	res := New(p, fastOptions(), nil).Execute(context.Background(), tool, nil)
	require.True(t, res.Success, res.Error)
	return res.Data
}

func TestExtractTables(t *testing.T) {
	markup := `<body>
<table>
  <thead><tr><th>Name</th><th>Price</th></tr></thead>
  <tbody><tr><td>Pen</td><td>$2</td></tr><tr><td>Ink</td><td>$5</td></tr></tbody>
</table>
<table><tr><td>a</td><td>b</td><td>c</td></tr><tr><td>1</td><td>2</td><td>3</td></tr></table>
<table></table>
</body>`

	got := mineWith(t, markup, "extractTables").(TablesResult)
	require.Equal(t, 3, got.Found)

	first := got.Tables[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, []string{"Name", "Price"}, first.Headers)
	assert.Equal(t, [][]string{{"Pen", "$2"}, {"Ink", "$5"}}, first.Rows)
	assert.Equal(t, 2, first.RowCount)
	assert.Equal(t, 2, first.ColumnCount)

	second := got.Tables[1]
	assert.Equal(t, []string{"a", "b", "c"}, second.Headers)
	assert.Equal(t, [][]string{{"1", "2", "3"}}, second.Rows)

	empty := got.Tables[2]
	assert.Nil(t, empty.Headers)
	assert.Empty(t, empty.Rows)
	assert.Zero(t, empty.ColumnCount)
}

func TestExtractTablesNone(t *testing.T) {
	got := mineWith(t, `<p>no tables</p>`, "extractTables").(TablesResult)
	assert.Zero(t, got.Found)
	assert.NotNil(t, got.Tables)
}

func TestFindAllLinks(t *testing.T) {
	markup := `<body>
<a href="/cart">Cart</a>
<a href="https://shop.example/help">Help</a>
<a href="https://cdn.other.example/a">A</a>
<a href="https://cdn.other.example/b">B</a>
<a href="https://news.example/">` + strings.Repeat("x", 150) + `</a>
<a href="mailto:hi@shop.example">Mail</a>
<a>No href</a>
</body>`

	got := mineWith(t, markup, "findAllLinks").(LinksResult)
	assert.Equal(t, 6, got.Total)
	assert.Equal(t, 3, got.Internal)
	assert.Equal(t, 3, got.External)
	assert.Equal(t, map[string]int{"cdn.other.example": 2, "news.example": 1}, got.ByDomain)

	assert.Equal(t, Link{Text: "Cart", Href: "https://shop.example/cart", Domain: "shop.example", IsInternal: true}, got.Links[0])
	assert.Len(t, got.Links[4].Text, 100)
	assert.Equal(t, "shop.example", got.Links[5].Domain)
}

func TestFindAllLinksNone(t *testing.T) {
	got := mineWith(t, `<p>plain</p>`, "findAllLinks").(LinksResult)
	assert.Zero(t, got.Total)
	assert.NotNil(t, got.Links)
	assert.NotNil(t, got.ByDomain)
}

func TestExtractPrices(t *testing.T) {
	text := "Was $1,299.99 now $999.00. Also €45 and 45 EUR, 20 USD, $0.00, £12.50 and again $999.00"
	got := extractPrices(text)

	require.Equal(t, 6, got.Found)
	amounts := make([]float64, 0, len(got.Prices))
	for _, p := range got.Prices {
		amounts = append(amounts, p.Amount)
	}
	assert.Equal(t, []float64{1299.99, 999, 45, 45, 20, 12.5}, amounts)

	assert.Equal(t, Price{Text: "$1,299.99", Currency: "$", Amount: 1299.99, Formatted: "$1299.99"}, got.Prices[0])
	assert.Equal(t, "€", got.Prices[2].Currency)
	assert.Equal(t, "EUR", got.Prices[3].Currency)
	assert.Equal(t, "USD", got.Prices[4].Currency)
	assert.Equal(t, "£12.50", got.Prices[5].Formatted)
}

func TestExtractPricesCapsAtHundred(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 130; i++ {
		fmt.Fprintf(&b, "item $%d.00, ", i)
	}
	got := extractPrices(b.String())

	assert.Equal(t, 130, got.Found)
	require.Len(t, got.Prices, 100)
	assert.Equal(t, 130.0, got.Prices[0].Amount)
	assert.Equal(t, 31.0, got.Prices[99].Amount)
}

func TestFindContactInfo(t *testing.T) {
	text := "Mail Sales@Shop.example or sales@shop.example, not logo@2x.png. Call (555) 123-4567, +1 555.987.6543 or 123-4567."
	got := findContactInfo(text)

	assert.Equal(t, []string{"sales@shop.example"}, got.Emails)
	assert.Equal(t, []string{"(555) 123-4567", "+1 555.987.6543"}, got.Phones)
	assert.Equal(t, 1, got.EmailCount)
	assert.Equal(t, 2, got.PhoneCount)
	assert.Equal(t, 3, got.Total)
}

func TestFindContactInfoEmpty(t *testing.T) {
	got := mineWith(t, `<p>nothing</p>`, "findContactInfo").(ContactResult)
	assert.Equal(t, []string{}, got.Emails)
	assert.Equal(t, []string{}, got.Phones)
	assert.Zero(t, got.Total)
}

func TestSummarizePage(t *testing.T) {
	markup := `<html><head><title>News</title></head><body>
<header>Site header</header><nav>Menu</nav>
<p>Lead   paragraph.</p>
<script>ignored()</script>
<p>` + strings.Repeat("word ", 1000) + `</p>
<footer>Footer</footer></body></html>`

	got := mineWith(t, markup, "summarizePage").(PageSummary)
	assert.Equal(t, "News", got.Title)
	assert.Equal(t, "https://shop.example/list", got.URL)
	assert.True(t, strings.HasPrefix(got.Text, "Lead paragraph. word word"), got.Text[:40])
	assert.True(t, strings.HasSuffix(got.Text, "..."))
	assert.Len(t, got.Text, 3003)
	assert.NotContains(t, got.Text, "Site header")
	assert.NotContains(t, got.Text, "ignored")
}

func TestSummarizeShortPage(t *testing.T) {
	got := mineWith(t, `<title>T</title><p>short</p>`, "summarizePage").(PageSummary)
	assert.Equal(t, "short", got.Text)
}
