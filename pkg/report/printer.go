// Package report renders runs for people: trace cards on the console while a
// run progresses, and summary artifacts on disk when it ends.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/entrhq/lumina/pkg/types"
)

const (
	cardWidth         = 78
	maxObservationLen = 600
)

// Level is the console verbosity.
type Level int

const (
	// LevelQuiet shows only warnings, errors and the final summary.
	LevelQuiet Level = iota
	// LevelNormal shows one card per step.
	LevelNormal
	// LevelVerbose adds tool arguments and timings.
	LevelVerbose
	// LevelDebug shows everything, including full observations.
	LevelDebug
)

// ParseLevel converts a verbosity name. Unknown names are normal.
func ParseLevel(level string) Level {
	switch level {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

// Printer writes run progress to a terminal.
type Printer struct {
	level  Level
	writer io.Writer
	styles styles
}

// NewPrinter returns a printer writing to w, or stdout when w is nil.
func NewPrinter(w io.Writer, level Level) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{level: level, writer: w, styles: newStyles(w)}
}

// Header prints a prominent title line.
func (p *Printer) Header(title string) {
	if p.level < LevelNormal {
		return
	}
	fmt.Fprintf(p.writer, "\n%s\n", p.styles.header.Render(title))
	fmt.Fprintln(p.writer, p.styles.muted.Render(strings.Repeat("─", cardWidth)))
}

// Infof prints an informational line.
func (p *Printer) Infof(format string, args ...any) {
	if p.level >= LevelNormal {
		fmt.Fprintln(p.writer, fmt.Sprintf(format, args...))
	}
}

// Warningf prints a warning at every level.
func (p *Printer) Warningf(format string, args ...any) {
	fmt.Fprintln(p.writer, p.styles.warning.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Errorf prints an error at every level.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.writer, p.styles.failure.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Verbosef prints only in verbose mode and above.
func (p *Printer) Verbosef(format string, args ...any) {
	if p.level >= LevelVerbose {
		fmt.Fprintln(p.writer, p.styles.muted.Render("→ "+fmt.Sprintf(format, args...)))
	}
}

// Plan lists planned steps without running them.
func (p *Printer) Plan(goal string, steps []types.PlannedStep) {
	fmt.Fprintf(p.writer, "%s %s\n", p.styles.header.Render("Goal:"), p.styles.goal.Render(goal))
	for _, s := range steps {
		line := fmt.Sprintf("%2d. %s %s", s.Index, p.styles.tool.Render(s.ToolCall.Name), s.ToolCall.ArgsJSON())
		fmt.Fprintln(p.writer, line)
		fmt.Fprintln(p.writer, "    "+p.styles.thought.Render(s.Thought))
	}
}

// Step prints the card for one trace entry.
func (p *Printer) Step(total int, e types.TraceEntry) {
	if p.level < LevelNormal {
		return
	}

	card := p.styles.card
	status := p.styles.success.Render("✓")
	switch {
	case e.DryRun:
		card = p.styles.dryRunCard
		status = p.styles.warning.Render("DRY RUN")
	case !e.Success:
		card = p.styles.failedCard
		status = p.styles.failure.Render("✗")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Step %d/%d  %s  %s\n", e.Index, total, p.styles.tool.Render(e.ToolCall.Name), status)
	b.WriteString(p.styles.thought.Render(e.Thought))
	if p.level >= LevelVerbose {
		fmt.Fprintf(&b, "\n%s", p.styles.muted.Render("args: "+e.ToolCall.ArgsJSON()))
		if !e.DryRun {
			fmt.Fprintf(&b, "\n%s", p.styles.muted.Render("took: "+e.Duration.Round(time.Millisecond).String()))
		}
	}
	obs := e.Observation
	if p.level < LevelDebug {
		obs = truncate(obs, maxObservationLen)
	}
	fmt.Fprintf(&b, "\n%s", p.styles.observation.Render(obs))

	fmt.Fprintln(p.writer, card.Render(b.String()))
}

// Summary prints the outcome of a finished run at every level.
func (p *Printer) Summary(snap types.RunSnapshot) {
	s := Summarize(snap)

	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, p.styles.header.Render("RUN SUMMARY"))
	fmt.Fprintln(p.writer, p.styles.muted.Render(strings.Repeat("═", cardWidth)))

	outcome := strings.ToUpper(string(s.Outcome))
	switch {
	case s.Outcome == types.OutcomeCompleted && s.Failed == 0:
		outcome = p.styles.success.Render("✓ " + outcome)
	case s.Outcome == types.OutcomeCompleted:
		outcome = p.styles.warning.Render("⚠ " + outcome + " WITH FAILURES")
	default:
		outcome = p.styles.failure.Render("✗ " + outcome)
	}
	fmt.Fprintf(p.writer, "  Outcome:  %s\n", outcome)
	fmt.Fprintf(p.writer, "  Goal:     %s\n", s.Goal)
	fmt.Fprintf(p.writer, "  Steps:    %d of %d (%d ok, %d failed)\n", len(s.Trace), s.TotalSteps, s.Succeeded, s.Failed)
	if s.DryRun {
		fmt.Fprintf(p.writer, "  Mode:     %s\n", p.styles.warning.Render("dry run"))
	}
	if s.Duration > 0 {
		fmt.Fprintf(p.writer, "  Duration: %s\n", s.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(p.writer, p.styles.muted.Render(strings.Repeat("═", cardWidth)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + fmt.Sprintf("… (%d more chars)", len(r)-n)
}
