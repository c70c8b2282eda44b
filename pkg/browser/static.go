package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/entrhq/lumina/pkg/executor"
	"github.com/entrhq/lumina/pkg/page"
	"github.com/entrhq/lumina/pkg/transport"
)

// StaticHost serves a page.Static filled by an HTTP fetcher.
type StaticHost struct {
	mu      sync.Mutex
	bus     *transport.Bus
	handle  transport.Handle
	opts    Options
	fetcher *page.Fetcher
	page    *page.Static
	exec    *executor.Executor
	detach  func()
	follows sync.WaitGroup
	closed  bool
}

// NewStaticHost attaches an executor over an empty document to bus under
// handle, makes it the active target and loads opts.StartURL.
func NewStaticHost(bus *transport.Bus, handle transport.Handle, fetcher *page.Fetcher, opts Options) (*StaticHost, error) {
	opts = opts.withDefaults()
	if fetcher == nil {
		fetcher = page.NewFetcher(opts.NavigationTimeout)
	}

	pg, err := page.NewStatic(BlankURL, "<html><head></head><body></body></html>")
	if err != nil {
		return nil, err
	}

	h := &StaticHost{bus: bus, handle: handle, opts: opts, fetcher: fetcher, page: pg}
	h.exec = executor.New(pg, opts.Executor, executor.NewPicker(bus.Reporter(handle), nil))
	pg.OnClick(h.onClick)

	h.attach()
	bus.Activate(handle)

	if opts.StartURL == BlankURL {
		bus.Announce(handle)
		return h, nil
	}
	if err := h.Navigate(context.Background(), handle, opts.StartURL, opts.NavigationTimeout); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Handle is the bus handle of the page.
func (h *StaticHost) Handle() transport.Handle {
	return h.handle
}

// Page exposes the document the executor acts on.
func (h *StaticHost) Page() *page.Static {
	return h.page
}

// Executor returns the executor attached to the page.
func (h *StaticHost) Executor() *executor.Executor {
	return h.exec
}

func (h *StaticHost) attach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach = h.bus.Listen(h.handle, h.exec.Handle)
}

// Navigate fetches url into the page. A fetch that outlasts timeout leaves an
// empty document at url and still succeeds.
func (h *StaticHost) Navigate(ctx context.Context, target transport.Handle, url string, timeout time.Duration) error {
	if target != h.handle {
		return fmt.Errorf("unknown page %s", target)
	}
	h.attach()
	return h.load(ctx, url, timeout)
}

func (h *StaticHost) load(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = h.opts.NavigationTimeout
	}
	defer h.bus.Announce(h.handle)

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := h.fetcher.Fetch(fetchCtx, h.page, url)
	switch {
	case err == nil:
		u, _ := h.page.URL()
		debugLog.Infof("navigated %s to %s", h.handle, u)
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		debugLog.Warnf("load of %s did not finish within %s, continuing", url, timeout)
		return h.page.Load(url, "<html><head></head><body></body></html>")
	default:
		return fmt.Errorf("navigation failed: %w", err)
	}
}

// onClick follows clicked links the way a browser would. The executor stays
// attached so the click itself still gets its reply.
func (h *StaticHost) onClick(el *page.StaticElement) {
	tag, _ := el.TagName()
	if tag != "a" {
		return
	}
	href, _ := el.Href()
	current, _ := h.page.URL()
	if !followable(current, href) {
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.follows.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.follows.Done()
		if err := h.load(context.Background(), href, h.opts.NavigationTimeout); err != nil {
			debugLog.Warnf("failed to follow link to %s: %v", href, err)
		}
	}()
}

// followable reports whether href leaves the current document over http.
func followable(current, href string) bool {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if u.Fragment == "" {
		return true
	}
	cur, err := url.Parse(current)
	if err != nil {
		return true
	}
	u.Fragment, cur.Fragment = "", ""
	return u.String() != cur.String()
}

// Close waits for pending link follows and detaches the executor.
func (h *StaticHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.follows.Wait()

	h.mu.Lock()
	detach := h.detach
	h.mu.Unlock()
	if detach != nil {
		detach()
	}
	h.bus.Deactivate(h.handle)
	return nil
}
