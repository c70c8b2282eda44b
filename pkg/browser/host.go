package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/lumina/pkg/executor"
	"github.com/entrhq/lumina/pkg/transport"
)

// Host owns one Chromium page and the executor attached to it.
type Host struct {
	mu      sync.Mutex
	bus     *transport.Bus
	handle  transport.Handle
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	exec    *executor.Executor
	detach  func()
	closed  bool
}

// Launch installs and starts Playwright, opens a Chromium page and attaches
// an executor for it to bus under handle. The page becomes the bus's active
// target.
func Launch(bus *transport.Bus, handle transport.Handle, opts Options) (*Host, error) {
	opts = opts.withDefaults()

	// Discard driver output so it does not interleave with the CLI's own
	// output.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	h := &Host{bus: bus, handle: handle, opts: opts, pw: pw}

	h.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		h.shutdown()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	h.context, err = h.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		h.shutdown()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	h.page, err = h.context.NewPage()
	if err != nil {
		h.shutdown()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	h.page.SetDefaultTimeout(float64(opts.NavigationTimeout.Milliseconds()))

	picker := executor.NewPicker(bus.Reporter(handle), &overlay{page: h.page})
	h.exec = executor.New(newLivePage(h.page), opts.Executor, picker)
	if err := installPickerBridge(h.page, picker); err != nil {
		h.shutdown()
		return nil, err
	}

	h.page.OnLoad(func(p playwright.Page) {
		debugLog.Debugf("%s loaded %s", h.handle, p.URL())
		h.bus.Announce(h.handle)
	})

	h.attach()
	bus.Activate(handle)
	debugLog.Infof("browser host %s started (headless=%t)", handle, opts.Headless)

	if opts.StartURL == BlankURL {
		bus.Announce(handle)
		return h, nil
	}
	if err := h.Navigate(context.Background(), handle, opts.StartURL, opts.NavigationTimeout); err != nil {
		h.shutdown()
		return nil, err
	}
	return h, nil
}

// Handle is the bus handle of the page.
func (h *Host) Handle() transport.Handle {
	return h.handle
}

// Executor returns the executor attached to the page.
func (h *Host) Executor() *executor.Executor {
	return h.exec
}

// attach (re)binds the executor on the bus. Replacing the listener fails
// in-flight sends to the old document and clears readiness.
func (h *Host) attach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach = h.bus.Listen(h.handle, h.exec.Handle)
}

// Navigate loads url in the page and waits for its load event or timeout,
// whichever comes first. Only a failed navigation is an error.
func (h *Host) Navigate(ctx context.Context, target transport.Handle, url string, timeout time.Duration) error {
	if target != h.handle {
		return fmt.Errorf("unknown page %s", target)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = h.opts.NavigationTimeout
	}

	h.attach()
	_, err := h.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			debugLog.Warnf("load of %s did not finish within %s, continuing", url, timeout)
			h.bus.Announce(h.handle)
			return nil
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	debugLog.Infof("navigated %s to %s", h.handle, h.page.URL())
	return nil
}

// Close detaches the executor and shuts the browser down.
func (h *Host) Close() error {
	return h.shutdown()
}

func (h *Host) shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	detach := h.detach
	h.mu.Unlock()

	if detach != nil {
		detach()
	}
	h.bus.Deactivate(h.handle)

	// Ignore close errors, continue cleanup
	if h.page != nil {
		_ = h.page.Close()
	}
	if h.context != nil {
		_ = h.context.Close()
	}
	if h.browser != nil {
		_ = h.browser.Close()
	}
	if h.pw != nil {
		if err := h.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
	}
	debugLog.Infof("browser host %s stopped", h.handle)
	return nil
}
