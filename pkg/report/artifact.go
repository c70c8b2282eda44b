package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/lumina/pkg/types"
)

// Summary is the on-disk report of one run.
type Summary struct {
	RunID      string             `json:"run_id"`
	Goal       string             `json:"goal"`
	Outcome    types.RunOutcome   `json:"outcome"`
	DryRun     bool               `json:"dry_run"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    time.Time          `json:"end_time"`
	Duration   time.Duration      `json:"duration"`
	TotalSteps int                `json:"total_steps"`
	Succeeded  int                `json:"succeeded"`
	Failed     int                `json:"failed"`
	Trace      []types.TraceEntry `json:"trace"`
}

// Summarize derives a Summary from a run snapshot.
func Summarize(snap types.RunSnapshot) Summary {
	s := Summary{
		RunID:      snap.RunID,
		Goal:       snap.Goal,
		Outcome:    snap.Outcome,
		DryRun:     snap.DryRun,
		StartTime:  snap.StartedAt,
		EndTime:    snap.FinishedAt,
		TotalSteps: snap.TotalSteps,
		Trace:      snap.Trace,
	}
	if !snap.StartedAt.IsZero() && !snap.FinishedAt.IsZero() {
		s.Duration = snap.FinishedAt.Sub(snap.StartedAt)
	}
	for _, e := range snap.Trace {
		if e.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// ArtifactWriter writes run reports into a directory.
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a writer for outputDir.
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{outputDir: outputDir}
}

// WriteAll writes the selected formats and returns the paths written.
func (w *ArtifactWriter) WriteAll(summary Summary, jsonReport, markdown bool) ([]string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	if jsonReport {
		path, err := w.WriteTraceJSON(summary)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if markdown {
		path, err := w.WriteSummaryMarkdown(summary)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteTraceJSON writes the full summary, trace included, as trace.json.
func (w *ArtifactWriter) WriteTraceJSON(summary Summary) (string, error) {
	path := filepath.Join(w.outputDir, "trace.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write trace JSON: %w", err)
	}
	return path, nil
}

// WriteSummaryMarkdown writes a human-readable summary.md.
func (w *ArtifactWriter) WriteSummaryMarkdown(summary Summary) (string, error) {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder
	md.WriteString("# Lumina Run Summary\n\n")
	fmt.Fprintf(&md, "**Goal:** %s\n\n", summary.Goal)
	fmt.Fprintf(&md, "**Outcome:** %s\n\n", summary.Outcome)
	if summary.DryRun {
		md.WriteString("**Mode:** dry run\n\n")
	}
	if !summary.StartTime.IsZero() {
		fmt.Fprintf(&md, "**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339))
	}
	if !summary.EndTime.IsZero() {
		fmt.Fprintf(&md, "**Finished:** %s\n\n", summary.EndTime.Format(time.RFC3339))
	}
	fmt.Fprintf(&md, "**Steps:** %d of %d (%d ok, %d failed)\n\n", len(summary.Trace), summary.TotalSteps, summary.Succeeded, summary.Failed)

	if len(summary.Trace) > 0 {
		md.WriteString("## Trace\n\n")
		for _, e := range summary.Trace {
			mark := "✅"
			if !e.Success {
				mark = "❌"
			}
			fmt.Fprintf(&md, "### %d. %s `%s`\n\n", e.Index, mark, e.ToolCall.Name)
			fmt.Fprintf(&md, "_%s_\n\n", e.Thought)
			fmt.Fprintf(&md, "- **Args:** `%s`\n", e.ToolCall.ArgsJSON())
			fmt.Fprintf(&md, "- **Observation:** %s\n\n", e.Observation)
		}
	}

	if err := os.WriteFile(path, []byte(md.String()), 0o600); err != nil {
		return "", fmt.Errorf("failed to write summary markdown: %w", err)
	}
	return path, nil
}
