package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	appconfig "github.com/entrhq/lumina/pkg/config"
	"github.com/entrhq/lumina/pkg/coordinator"
	"github.com/entrhq/lumina/pkg/report"
)

var planFlags struct {
	json     bool
	maxSteps int
}

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Show the steps a goal expands to without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planFlags.json, "json", false, "print the plan as JSON")
	planCmd.Flags().IntVar(&planFlags.maxSteps, "max-steps", 0, "truncate the plan (default from settings)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(appconfig.Global())
	if err != nil {
		return err
	}

	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		return coordinator.ErrNoGoal
	}
	limit := planFlags.maxSteps
	if limit <= 0 {
		limit = s.agent.MaxSteps()
	}

	steps := s.planner().Expand(goal)
	if len(steps) > limit {
		steps = steps[:limit]
	}

	if planFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	}
	report.NewPrinter(cmd.OutOrStdout(), report.LevelNormal).Plan(goal, steps)
	return nil
}
