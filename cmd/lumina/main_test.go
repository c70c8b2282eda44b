package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/entrhq/lumina/pkg/config"
	"github.com/entrhq/lumina/pkg/report"
	"github.com/entrhq/lumina/pkg/runconfig"
	"github.com/entrhq/lumina/pkg/types"
)

// resetFlags restores every flag of cmd to its default so commands can be
// executed more than once in one process.
func resetFlags(t *testing.T, cmds ...*cobra.Command) {
	t.Helper()
	for _, cmd := range cmds {
		for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				require.NoError(t, f.Value.Set(f.DefValue))
				f.Changed = false
			})
		}
	}
}

func writeSettings(t *testing.T, sections map[string]map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	raw, err := json.Marshal(map[string]any{"version": appconfig.FileVersion, "sections": sections})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func testSettings(t *testing.T, sections map[string]map[string]any) settings {
	t.Helper()
	store, err := appconfig.NewFileStore(writeSettings(t, sections))
	require.NoError(t, err)
	m, err := appconfig.NewDefaultManager(store)
	require.NoError(t, err)
	require.NoError(t, m.LoadAll())
	s, err := loadSettings(m)
	require.NoError(t, err)
	return s
}

func TestCoordinatorOptionsFromSettings(t *testing.T) {
	s := testSettings(t, map[string]map[string]any{
		"agent":     {"max_steps": 7, "step_delay": "1s", "stop_grace": "50ms"},
		"transport": {"tool_timeout": "10s", "max_attempts": 5, "backoff_base": "250ms", "backoff_factor": 3, "picker_timeout": "2s"},
	})

	opts := s.coordinatorOptions()
	assert.Equal(t, 7, opts.Runner.DefaultMaxSteps)
	assert.Equal(t, time.Second, opts.Runner.StepDelay)
	assert.Equal(t, 50*time.Millisecond, opts.Runner.StopGrace)
	assert.Equal(t, 10*time.Second, opts.Dispatcher.DefaultTimeout)
	assert.Equal(t, 5, opts.Dispatcher.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, opts.Dispatcher.Retry.BaseDelay)
	assert.Equal(t, 3.0, opts.Dispatcher.Retry.Factor)
	assert.Equal(t, 500*time.Millisecond, opts.Dispatcher.AttachSettle)
	assert.Equal(t, 2*time.Second, opts.PickerTimeout)
}

func TestBrowserOptionsAndSites(t *testing.T) {
	s := testSettings(t, map[string]map[string]any{
		"agent":   {"sites": map[string]any{"intranet": "https://intranet.example.com"}},
		"browser": {"headless": true, "viewport_width": 800, "viewport_height": 600, "start_url": "https://example.com"},
	})

	bopts := s.browserOptions()
	assert.True(t, bopts.Headless)
	assert.Equal(t, 800, bopts.ViewportWidth)
	assert.Equal(t, 600, bopts.ViewportHeight)
	assert.Equal(t, "https://example.com", bopts.StartURL)

	url, ok := s.planner().ResolveURL("open the intranet")
	require.True(t, ok)
	assert.Equal(t, "https://intranet.example.com", url)
}

func TestResolveRunConfig(t *testing.T) {
	resetFlags(t, runCmd)
	t.Cleanup(func() { resetFlags(t, runCmd) })

	s := testSettings(t, map[string]map[string]any{
		"agent":   {"max_steps": 4, "dry_run": true},
		"browser": {"allowed_hosts": []any{"*.example.com"}},
	})

	require.NoError(t, runCmd.ParseFlags([]string{"--static", "--read-only", "-o", "out"}))
	cfg, err := resolveRunConfig(runCmd, []string{"extract", "from", "example.com"}, s)
	require.NoError(t, err)

	assert.Equal(t, "extract from example.com", cfg.Goal)
	assert.Equal(t, 4, cfg.MaxSteps)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, runconfig.ModeStatic, cfg.Mode)
	assert.True(t, cfg.Constraints.ReadOnly)
	assert.Equal(t, []string{"*.example.com"}, cfg.Constraints.AllowedHosts)
	assert.True(t, cfg.Artifacts.Enabled)
	assert.Equal(t, "out", cfg.Artifacts.OutputDir)
}

func TestResolveRunConfigFromFile(t *testing.T) {
	resetFlags(t, runCmd)
	t.Cleanup(func() { resetFlags(t, runCmd) })

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("goal: from the file\nmax_steps: 9\nmode: static\n"), 0o600))

	require.NoError(t, runCmd.ParseFlags([]string{"--config", path, "--max-steps", "2"}))
	cfg, err := resolveRunConfig(runCmd, nil, testSettings(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "from the file", cfg.Goal)
	assert.Equal(t, 2, cfg.MaxSteps)
	assert.Equal(t, runconfig.ModeStatic, cfg.Mode)
}

func TestResolveRunConfigNeedsGoal(t *testing.T) {
	resetFlags(t, runCmd)
	_, err := resolveRunConfig(runCmd, nil, testSettings(t, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a goal is required")
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, loadEnv(""))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LUMINA_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Setenv("LUMINA_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("LUMINA_TEST_VALUE"))
	require.NoError(t, loadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("LUMINA_TEST_VALUE"))
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd, runCmd, planCmd, serveCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunStaticEndToEnd(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Docs</title></head><body><h1>Main Title</h1><h2>Sub Heading</h2><p>body</p></body></html>`))
	}))
	defer site.Close()

	settingsFile := writeSettings(t, map[string]map[string]any{"agent": {"step_delay": "10ms"}})
	outDir := t.TempDir()

	out, err := runCLI(t,
		"--settings", settingsFile, "--env-file", "",
		"run", "--static", "-o", outDir, "-v", "quiet",
		"extract the headings from "+site.URL,
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "RUN SUMMARY")

	raw, err := os.ReadFile(filepath.Join(outDir, "trace.json"))
	require.NoError(t, err)
	var summary report.Summary
	require.NoError(t, json.Unmarshal(raw, &summary))

	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	require.Len(t, summary.Trace, 3)
	assert.Equal(t, "navigate", summary.Trace[0].ToolCall.Name)
	for _, e := range summary.Trace {
		assert.True(t, e.Success, e.Observation)
	}
	assert.Contains(t, summary.Trace[2].Observation, "Main Title")
	assert.Contains(t, summary.Trace[2].Observation, "Sub Heading")
	assert.NotContains(t, summary.Trace[2].Observation, "body</p>")
}

func TestRunRejectsDisallowedHost(t *testing.T) {
	settingsFile := writeSettings(t, map[string]map[string]any{
		"agent":   {"step_delay": "10ms"},
		"browser": {"allowed_hosts": []any{"docs.example.com"}},
	})
	outDir := t.TempDir()

	out, err := runCLI(t,
		"--settings", settingsFile, "--env-file", "",
		"run", "--static", "-o", outDir, "-v", "quiet",
		"extract from https://127.0.0.1:1/",
	)
	require.NoError(t, err, out)

	raw, err := os.ReadFile(filepath.Join(outDir, "trace.json"))
	require.NoError(t, err)
	var summary report.Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	require.NotEmpty(t, summary.Trace)
	assert.False(t, summary.Trace[0].Success)
	assert.Contains(t, summary.Trace[0].Observation, "constraint violation (host)")
}

func TestPlanJSON(t *testing.T) {
	settingsFile := writeSettings(t, nil)
	out, err := runCLI(t, "--settings", settingsFile, "--env-file", "", "plan", "--json", "extract", "from", "wikipedia")
	require.NoError(t, err, out)

	var steps []types.PlannedStep
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.Len(t, steps, 3)
	assert.Equal(t, "navigate", steps[0].ToolCall.Name)
	assert.Equal(t, "extract", steps[2].ToolCall.Name)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lumina v"+version+"\n", out)
}
