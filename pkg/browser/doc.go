// Package browser hosts the page a run acts on and performs privileged
// navigation for the coordinator.
//
// # Hosts
//
// Two hosts attach an executor to a transport.Bus under a page handle:
//
//  1. Host: a Chromium page driven through Playwright. Tools run against the
//     live DOM and the picker overlay is injected into every document.
//  2. StaticHost: pages fetched over HTTP into a parsed document. No
//     scripts run; following a clicked link fetches its target.
//
// # Readiness
//
// Navigation re-attaches the executor, which clears the page's readiness on
// the bus. The host announces readiness again once the new document has
// loaded, or once the navigation timeout has passed, whichever comes first.
package browser

import (
	"time"

	"github.com/entrhq/lumina/pkg/executor"
	"github.com/entrhq/lumina/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("browser")
	if err != nil {
		debugLog.Warnf("Failed to initialize browser logger, using stderr fallback: %v", err)
	}
}

// Default host settings.
const (
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 720
	DefaultNavigationTimeout = 30 * time.Second
	BlankURL                 = "about:blank"
)

// Options configures a host.
type Options struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// StartURL is loaded when the host starts
	StartURL string

	ViewportWidth  int
	ViewportHeight int

	// NavigationTimeout bounds the start page load and link follows
	NavigationTimeout time.Duration

	Executor executor.Options
}

// DefaultOptions returns options for a visible browser on a blank page.
func DefaultOptions() Options {
	return Options{
		StartURL:          BlankURL,
		ViewportWidth:     DefaultViewportWidth,
		ViewportHeight:    DefaultViewportHeight,
		NavigationTimeout: DefaultNavigationTimeout,
		Executor:          executor.DefaultOptions(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.StartURL == "" {
		o.StartURL = def.StartURL
	}
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = def.ViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = def.ViewportHeight
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = def.NavigationTimeout
	}
	return o
}
