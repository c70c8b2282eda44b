package main

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/lumina/pkg/browser"
	appconfig "github.com/entrhq/lumina/pkg/config"
	"github.com/entrhq/lumina/pkg/coordinator"
	"github.com/entrhq/lumina/pkg/planner"
	"github.com/entrhq/lumina/pkg/runconfig"
	"github.com/entrhq/lumina/pkg/transport"
)

// activeTab is the handle of the single page a lumina process drives.
const activeTab transport.Handle = "tab-1"

// settings is a typed view of the registered config sections.
type settings struct {
	agent     *appconfig.AgentSection
	transport *appconfig.TransportSection
	browser   *appconfig.BrowserSection
	server    *appconfig.ServerSection
}

func loadSettings(m *appconfig.Manager) (settings, error) {
	var s settings
	var ok bool
	if s.agent, ok = section[*appconfig.AgentSection](m, appconfig.SectionIDAgent); !ok {
		return s, fmt.Errorf("config section %q is not registered", appconfig.SectionIDAgent)
	}
	if s.transport, ok = section[*appconfig.TransportSection](m, appconfig.SectionIDTransport); !ok {
		return s, fmt.Errorf("config section %q is not registered", appconfig.SectionIDTransport)
	}
	if s.browser, ok = section[*appconfig.BrowserSection](m, appconfig.SectionIDBrowser); !ok {
		return s, fmt.Errorf("config section %q is not registered", appconfig.SectionIDBrowser)
	}
	if s.server, ok = section[*appconfig.ServerSection](m, appconfig.SectionIDServer); !ok {
		return s, fmt.Errorf("config section %q is not registered", appconfig.SectionIDServer)
	}
	return s, nil
}

func section[T appconfig.Section](m *appconfig.Manager, id string) (T, bool) {
	var zero T
	s, ok := m.GetSection(id)
	if !ok {
		return zero, false
	}
	typed, ok := s.(T)
	return typed, ok
}

// coordinatorOptions maps the agent and transport sections onto the
// coordinator's timings.
func (s settings) coordinatorOptions() coordinator.Options {
	attempts, base, factor := s.transport.Retry()
	return coordinator.Options{
		Dispatcher: coordinator.DispatcherOptions{
			DefaultTimeout: s.transport.ToolTimeout(),
			AttachSettle:   s.transport.AttachSettle(),
			Retry: coordinator.RetryPolicy{
				MaxAttempts: attempts,
				BaseDelay:   base,
				Factor:      factor,
			},
		},
		Runner: coordinator.RunnerOptions{
			DefaultMaxSteps: s.agent.MaxSteps(),
			StepDelay:       s.agent.StepDelay(),
			StopGrace:       s.agent.StopGrace(),
		},
		PickerTimeout: s.transport.PickerTimeout(),
	}
}

func (s settings) browserOptions() browser.Options {
	width, height := s.browser.Viewport()
	opts := browser.DefaultOptions()
	opts.Headless = s.browser.Headless()
	opts.StartURL = s.browser.StartURL()
	opts.ViewportWidth = width
	opts.ViewportHeight = height
	opts.NavigationTimeout = s.browser.NavigationTimeout()
	return opts
}

func (s settings) planner() *planner.Planner {
	return planner.New(planner.SitesFromMap(s.agent.Sites())...)
}

// hostGuard restricts navigate to the browser section's allowed hosts.
func (s settings) hostGuard() (*runconfig.Guard, error) {
	return runconfig.NewGuard(runconfig.ConstraintConfig{AllowedHosts: s.browser.AllowedHosts()})
}

// pageHost is a started page: a browser tab or a fetched document.
type pageHost interface {
	coordinator.Navigator
	Close() error
}

func startHost(bus *transport.Bus, static bool, opts browser.Options) (pageHost, error) {
	if static {
		debugLog.Infof("starting static host at %s", opts.StartURL)
		return browser.NewStaticHost(bus, activeTab, nil, opts)
	}
	debugLog.Infof("launching browser (headless=%t) at %s", opts.Headless, opts.StartURL)
	return browser.Launch(bus, activeTab, opts)
}

// engine is a running page host with a coordinator attached.
type engine struct {
	bus   *transport.Bus
	host  pageHost
	coord *coordinator.Coordinator
}

func newEngine(ctx context.Context, s settings, static bool, bopts browser.Options, guard coordinator.Guard) (*engine, error) {
	bus := transport.NewBus()
	host, err := startHost(bus, static, bopts)
	if err != nil {
		return nil, err
	}

	coord := coordinator.New(ctx, bus, bus, host, s.planner(), s.coordinatorOptions())
	if guard != nil {
		coord.Dispatcher.SetGuard(guard)
	}
	bus.OnReport(coord.HandleReport)
	return &engine{bus: bus, host: host, coord: coord}, nil
}

// Close waits for run loops to exit, then closes the page.
func (e *engine) Close(grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		e.coord.Runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		debugLog.Warnf("run loop still active after %s, closing page anyway", grace)
	}
	return e.host.Close()
}
