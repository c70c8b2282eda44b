package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const fixture = `<html><head><title> Shop </title><style>.x{}</style></head>
<body>
  <nav>Home | About</nav>
  <h1>Deals</h1>
  <a class="link" href="/item/1">First item</a>
  <a class="link" href="https://other.example/x">Elsewhere</a>
  <input id="q" name="q" value="start">
  <textarea id="notes">hello</textarea>
  <select id="size"><option value="s">S</option><option value="m" selected>M</option></select>
  <script>var price = "$999";</script>
  <footer>(c) shop</footer>
</body></html>`

func newFixture(t *testing.T) *Static {
	t.Helper()
	s, err := NewStatic("https://shop.example/deals", fixture)
	require.NoError(t, err)
	return s
}

func TestQueryAll(t *testing.T) {
	s := newFixture(t)

	els, err := s.QueryAll("a.link")
	require.NoError(t, err)
	require.Len(t, els, 2)

	text, err := els[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "First item", text)

	tag, err := els[0].TagName()
	require.NoError(t, err)
	assert.Equal(t, "a", tag)

	none, err := s.QueryAll(".missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryAllInvalidSelector(t *testing.T) {
	s := newFixture(t)
	_, err := s.QueryAll("a[")
	assert.ErrorContains(t, err, "invalid selector")
}

func TestHrefResolves(t *testing.T) {
	s := newFixture(t)
	els, err := s.QueryAll("a")
	require.NoError(t, err)

	href, err := els[0].Href()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/item/1", href)

	href, err = els[1].Href()
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", href)
}

func TestFormValues(t *testing.T) {
	s := newFixture(t)

	for sel, want := range map[string]string{"#q": "start", "#notes": "hello", "#size": "m", "h1": ""} {
		els, err := s.QueryAll(sel)
		require.NoError(t, err)
		v, err := els[0].Value()
		require.NoError(t, err)
		assert.Equal(t, want, v, sel)
	}

	els, err := s.QueryAll("#q")
	require.NoError(t, err)
	require.NoError(t, els[0].SetValue("laptops"))
	v, err := els[0].Value()
	require.NoError(t, err)
	assert.Equal(t, "laptops", v)

	h1, err := s.QueryAll("h1")
	require.NoError(t, err)
	assert.Error(t, h1[0].SetValue("x"))
}

func TestClickRecordsAndFiresHook(t *testing.T) {
	s := newFixture(t)
	var hooked string
	s.OnClick(func(el *StaticElement) {
		hooked, _ = el.Text()
	})

	els, err := s.QueryAll("h1")
	require.NoError(t, err)
	require.NoError(t, els[0].Click())

	assert.Equal(t, "Deals", hooked)
	require.Len(t, s.Clicks(), 1)
	assert.Contains(t, s.Clicks()[0], "<h1>")
}

func TestScrollAndMetadata(t *testing.T) {
	s := newFixture(t)

	y, err := s.ScrollTo(-5)
	require.NoError(t, err)
	assert.Zero(t, y)

	y, err = s.ScrollTo(400)
	require.NoError(t, err)
	assert.Equal(t, 400.0, y)

	title, err := s.Title()
	require.NoError(t, err)
	assert.Equal(t, "Shop", title)

	u, err := s.URL()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/deals", u)

	require.NoError(t, s.Highlight("a", time.Second))
	assert.Equal(t, []string{"a"}, s.Highlights())
}

func TestHighlightOverlappingCallsClear(t *testing.T) {
	s := newFixture(t)

	require.NoError(t, s.Highlight("h1", 100*time.Millisecond))
	assert.Equal(t, 1, s.Outlined())
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, s.Highlight("a.link", 300*time.Millisecond))
	assert.Equal(t, 2, s.Outlined())

	// The first expiry must not touch the outline the second call drew.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, s.Outlined())

	assert.Eventually(t, func() bool { return s.Outlined() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"h1", "a.link"}, s.Highlights())
}

func TestHighlightSameSelectorTwice(t *testing.T) {
	s := newFixture(t)

	require.NoError(t, s.Highlight("a.link", 60*time.Millisecond))
	require.NoError(t, s.Highlight("a.link", 60*time.Millisecond))
	assert.Equal(t, 2, s.Outlined())
	assert.Eventually(t, func() bool { return s.Outlined() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMutate(t *testing.T) {
	s := newFixture(t)
	s.Mutate(func(doc *goquery.Document) {
		doc.Find("body").AppendHtml(`<div id="late">late</div>`)
	})
	els, err := s.QueryAll("#late")
	require.NoError(t, err)
	assert.Len(t, els, 1)
}

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	n, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	return n
}

func TestInnerText(t *testing.T) {
	text := InnerText(parse(t, fixture))
	assert.Contains(t, text, "Deals\n")
	assert.Contains(t, text, "Home | About")
	assert.NotContains(t, text, "$999")
	assert.NotContains(t, text, ".x{}")
}

func TestSummaryText(t *testing.T) {
	text := SummaryText(parse(t, fixture))
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "(c) shop")
	assert.NotContains(t, text, "\n")
	assert.True(t, strings.HasPrefix(text, "Deals First item"), text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "ab", Clip("abc", 2))
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<h1>Not here</h1>"))
			return
		}
		_, _ = w.Write([]byte("<title>Fetched</title><p>ok</p>"))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second)
	s := MustStatic("about:blank", "")

	require.NoError(t, f.Fetch(context.Background(), s, srv.URL+"/page"))
	title, _ := s.Title()
	assert.Equal(t, "Fetched", title)
	u, _ := s.URL()
	assert.Equal(t, srv.URL+"/page", u)

	require.NoError(t, f.Fetch(context.Background(), s, srv.URL+"/missing"))
	els, err := s.QueryAll("h1")
	require.NoError(t, err)
	assert.Len(t, els, 1)

	require.NoError(t, f.Fetch(context.Background(), s, "about:blank"))
	els, err = s.QueryAll("h1")
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestFetcherTransportError(t *testing.T) {
	f := NewFetcher(100 * time.Millisecond)
	s := MustStatic("about:blank", "")
	err := f.Fetch(context.Background(), s, "http://127.0.0.1:1/")
	assert.Error(t, err)
}
