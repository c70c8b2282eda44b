package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/entrhq/lumina/pkg/config"
	"github.com/entrhq/lumina/pkg/logging"
	"github.com/entrhq/lumina/pkg/server"
)

// Environment variables read after .env is loaded. Flags win over them.
const (
	envSettings   = "LUMINA_SETTINGS"
	envListenAddr = "LUMINA_LISTEN_ADDR"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("cli")
	if err != nil {
		debugLog.Warnf("Failed to initialize cli logger, using stderr fallback: %v", err)
	}
}

var (
	settingsPath string
	envFile      string
)

var rootCmd = &cobra.Command{
	Use:   "lumina",
	Short: "Plan goals into browser actions and run them",
	Long: `Lumina turns a short goal such as "extract the headings from wikipedia"
into a plan of browser tool calls and executes them against a page,
recording a trace of every step.

Run one goal from the terminal with "lumina run", or start the control
service with "lumina serve" and drive it over HTTP and websockets.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	server.Version = version

	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings file (default is ~/.lumina/config.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before anything else")
}

// setup loads the dotenv file and the settings store shared by every
// subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if err := loadEnv(envFile); err != nil {
		return err
	}
	if !cmd.Flags().Changed("settings") {
		if v := os.Getenv(envSettings); v != "" {
			settingsPath = v
		}
	}
	if err := appconfig.Initialize(settingsPath); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	return nil
}

// loadEnv loads path into the environment. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	debugLog.Infof("loaded environment from %s", path)
	return nil
}
