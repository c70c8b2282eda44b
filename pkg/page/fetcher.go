package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDocumentBytes bounds how much of a response body is parsed.
const maxDocumentBytes = 10 << 20

// Fetcher loads documents over HTTP into a Static page. It stands in for a
// browser when no JavaScript is needed.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewFetcher returns a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: "lumina/1.0 (+static)",
	}
}

// Fetch retrieves rawURL and loads the response into dst. HTTP error
// statuses still load, as a browser would render the error page; only
// transport failures are returned. about:blank loads an empty document.
func (f *Fetcher) Fetch(ctx context.Context, dst *Static, rawURL string) error {
	if rawURL == "about:blank" {
		return dst.Load(rawURL, "<html><head></head><body></body></html>")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return dst.Load(resp.Request.URL.String(), string(body))
}
