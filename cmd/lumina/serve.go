package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/entrhq/lumina/pkg/config"
	"github.com/entrhq/lumina/pkg/report"
	"github.com/entrhq/lumina/pkg/server"
)

var serveFlags struct {
	static   bool
	headless bool
	addr     string
	startURL string
	noWatch  bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a page and serve the control API",
	Long: `Start a browser page (or a static fetcher with --static) and expose the
control commands on POST /v1/commands. Run events and picker results are
streamed on the /v1/events websocket.

Settings changes are picked up while serving and apply to the next run.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.BoolVar(&serveFlags.static, "static", false, "fetch pages over HTTP instead of driving a browser")
	f.BoolVar(&serveFlags.headless, "headless", false, "run the browser without a window")
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (default from settings)")
	f.StringVar(&serveFlags.startURL, "start-url", "", "page loaded at startup (default from settings)")
	f.BoolVar(&serveFlags.noWatch, "no-watch", false, "do not reload settings when the file changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := appconfig.Global()
	s, err := loadSettings(manager)
	if err != nil {
		return err
	}

	bopts := s.browserOptions()
	if cmd.Flags().Changed("headless") {
		bopts.Headless = serveFlags.headless
	}
	if serveFlags.startURL != "" {
		bopts.StartURL = serveFlags.startURL
	}
	addr := serveFlags.addr
	if addr == "" {
		addr = os.Getenv(envListenAddr)
	}
	if addr == "" {
		addr = s.server.ListenAddr()
	}

	guard, err := s.hostGuard()
	if err != nil {
		return err
	}
	eng, err := newEngine(ctx, s, serveFlags.static, bopts, guard)
	if err != nil {
		return err
	}
	defer eng.Close(2 * time.Second)

	out := report.NewPrinter(cmd.OutOrStdout(), report.LevelNormal)
	if !serveFlags.noWatch {
		if err := watchSettings(ctx, manager, s, eng, out); err != nil {
			out.Warningf("settings will not reload: %v", err)
		}
	}

	out.Header("Lumina " + version)
	out.Infof("Serving on http://%s (commands: POST /v1/commands, events: /v1/events)", addr)
	if serveFlags.static {
		out.Infof("Page host: static fetcher")
	} else {
		out.Infof("Page host: chromium (headless=%t)", bopts.Headless)
	}

	srv := server.New(eng.coord, server.Options{})
	if err := srv.Start(ctx, addr); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	out.Infof("Shutting down")
	return nil
}

// watchSettings reloads the settings file on change and reconfigures the
// running engine.
func watchSettings(ctx context.Context, manager *appconfig.Manager, s settings, eng *engine, out *report.Printer) error {
	pathed, ok := manager.Store().(interface{ Path() string })
	if !ok {
		return fmt.Errorf("settings store has no file to watch")
	}
	w, err := appconfig.NewWatcher(manager, pathed.Path())
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	go func() {
		defer w.Stop()
		for ev := range w.Events() {
			if ev.Error != nil {
				out.Warningf("settings reload failed: %v", ev.Error)
				continue
			}
			eng.coord.Configure(s.coordinatorOptions())
			if guard, err := s.hostGuard(); err != nil {
				out.Warningf("allowed_hosts not applied: %v", err)
			} else {
				eng.coord.Dispatcher.SetGuard(guard)
			}
			out.Infof("Settings reloaded from %s", ev.Path)
		}
	}()
	return nil
}
