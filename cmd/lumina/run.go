package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/entrhq/lumina/pkg/config"
	"github.com/entrhq/lumina/pkg/coordinator"
	"github.com/entrhq/lumina/pkg/report"
	"github.com/entrhq/lumina/pkg/runconfig"
	"github.com/entrhq/lumina/pkg/types"
)

var runFlags struct {
	configFile string
	maxSteps   int
	dryRun     bool
	static     bool
	headless   bool
	startURL   string
	verbosity  string
	timeout    time.Duration
	output     string
	readOnly   bool
}

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Plan a goal and run it once",
	Long: `Plan the goal, run every step against a page and print a card per step.

The goal and its limits come from flags or from a YAML run file given with
--config; flags set on the command line override the file.`,
	Example: `  lumina run "extract the headings from wikipedia"
  lumina run --dry-run "click 'Sign in' on github"
  lumina run --static --config run.yaml`,
	Args: cobra.ArbitraryArgs,
	RunE: runOnce,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.configFile, "config", "c", "", "YAML run file")
	f.IntVar(&runFlags.maxSteps, "max-steps", 0, "maximum steps to run (default from settings)")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "record what would run without touching the page")
	f.BoolVar(&runFlags.static, "static", false, "fetch pages over HTTP instead of driving a browser")
	f.BoolVar(&runFlags.headless, "headless", true, "run the browser without a window")
	f.StringVar(&runFlags.startURL, "start-url", "", "page loaded before the first step")
	f.StringVarP(&runFlags.verbosity, "verbosity", "v", "", "console output: quiet, normal, verbose, debug")
	f.DurationVar(&runFlags.timeout, "timeout", 0, "stop the run after this long")
	f.StringVarP(&runFlags.output, "output", "o", "", "write trace.json and summary.md to this directory")
	f.BoolVar(&runFlags.readOnly, "read-only", false, "reject tools that click or type")
	rootCmd.AddCommand(runCmd)
}

// resolveRunConfig merges the run file, the settings and the flags.
func resolveRunConfig(cmd *cobra.Command, args []string, s settings) (*runconfig.Config, error) {
	cfg := runconfig.DefaultConfig()
	if runFlags.configFile != "" {
		loaded, err := runconfig.Load(runFlags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg.MaxSteps = s.agent.MaxSteps()
		cfg.DryRun = s.agent.DryRun()
	}

	flags := cmd.Flags()
	if len(args) > 0 {
		cfg.Goal = strings.Join(args, " ")
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = runFlags.maxSteps
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = runFlags.dryRun
	}
	if flags.Changed("static") {
		cfg.Mode = runconfig.ModeBrowser
		if runFlags.static {
			cfg.Mode = runconfig.ModeStatic
		}
	}
	if runFlags.startURL != "" {
		cfg.StartURL = runFlags.startURL
	}
	if runFlags.verbosity != "" {
		cfg.Logging.Verbosity = runFlags.verbosity
	}
	if flags.Changed("timeout") {
		cfg.Constraints.Timeout = runFlags.timeout
	}
	if flags.Changed("read-only") {
		cfg.Constraints.ReadOnly = runFlags.readOnly
	}
	if runFlags.output != "" {
		cfg.Artifacts.Enabled = true
		cfg.Artifacts.OutputDir = runFlags.output
	}
	if len(cfg.Constraints.AllowedHosts) == 0 {
		cfg.Constraints.AllowedHosts = s.browser.AllowedHosts()
	}

	if strings.TrimSpace(cfg.Goal) == "" {
		return nil, errors.New("a goal is required: pass it as an argument or in the run file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	return cfg, nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := loadSettings(appconfig.Global())
	if err != nil {
		return err
	}
	cfg, err := resolveRunConfig(cmd, args, s)
	if err != nil {
		return err
	}
	out := report.NewPrinter(cmd.OutOrStdout(), report.ParseLevel(cfg.Logging.Verbosity))

	guard, err := runconfig.NewGuard(cfg.Constraints)
	if err != nil {
		return err
	}

	bopts := s.browserOptions()
	bopts.Headless = runFlags.headless
	if cfg.StartURL != "" {
		bopts.StartURL = cfg.StartURL
	}

	// The engine outlives a timed-out run long enough to stop it cleanly.
	eng, err := newEngine(context.Background(), s, cfg.Mode == runconfig.ModeStatic, bopts, guard)
	if err != nil {
		return err
	}
	defer eng.Close(5 * time.Second)

	snap, err := execute(ctx, eng, cfg, out)
	if err != nil {
		return err
	}
	out.Summary(snap)

	if cfg.Artifacts.Enabled {
		paths, err := report.NewArtifactWriter(cfg.Artifacts.OutputDir).
			WriteAll(report.Summarize(snap), cfg.Artifacts.JSON, cfg.Artifacts.Markdown)
		if err != nil {
			out.Errorf("%v", err)
		}
		for _, p := range paths {
			out.Verbosef("wrote %s", p)
		}
	}

	if snap.Outcome != types.OutcomeCompleted {
		return fmt.Errorf("run %s", snap.Outcome)
	}
	return nil
}

// execute starts the run, prints each step as it lands and returns the
// final snapshot. Cancelling ctx or hitting the run timeout stops the run.
func execute(ctx context.Context, eng *engine, cfg *runconfig.Config, out *report.Printer) (types.RunSnapshot, error) {
	finished := make(chan types.RunSnapshot, 1)
	var total int
	unsubscribe := eng.coord.Subscribe(func(ev *types.RunEvent) {
		switch ev.Type {
		case types.EventTypeRunStarted:
			total = ev.Snapshot.TotalSteps
		case types.EventTypeStepCompleted:
			out.Step(total, *ev.Step)
		case types.EventTypeRunFinished:
			finished <- *ev.Snapshot
		}
	})
	defer unsubscribe()

	out.Header("Lumina " + version)
	out.Infof("Goal: %s", cfg.Goal)
	if cfg.DryRun {
		out.Infof("Dry run: no page will be touched")
	}

	if _, err := eng.coord.Runner.Start(cfg.Goal, cfg.MaxSteps, cfg.DryRun); err != nil {
		return types.RunSnapshot{}, err
	}

	var deadline <-chan time.Time
	if cfg.Constraints.Timeout > 0 {
		timer := time.NewTimer(cfg.Constraints.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case snap := <-finished:
		return snap, nil
	case <-deadline:
		out.Warningf("run timed out after %s, stopping", cfg.Constraints.Timeout)
	case <-ctx.Done():
		out.Warningf("interrupted, stopping")
	}

	if _, err := eng.coord.Runner.Stop(context.Background()); err != nil && !errors.Is(err, coordinator.ErrNotRunning) {
		return types.RunSnapshot{}, err
	}
	eng.coord.Runner.Wait()
	return eng.coord.Runner.Snapshot(), nil
}
