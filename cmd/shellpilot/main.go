package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shellpilot/internal/logging"
)

var (
	// Global flags
	verbose    bool
	apiKey     string
	configPath string
	workspace  string
	timeout    time.Duration
	autoRun    bool
	maxRisk    string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shellpilot",
	Short: "shellpilot - agent task orchestrator for terminal sessions",
	Long: `shellpilot turns a natural-language goal into a multi-step, self-correcting
sequence of shell commands. It plans with an LLM, watches the terminal output
history to tell when each command finished, and feeds the captured output back
into the next planning step until the goal is reached or an error stops it.

Commands above the configured risk ceiling are never dispatched automatically.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		config.Encoding = "console"
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shellpilot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("shellpilot 0.3.0")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "LLM API key (overrides config and env)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default .shellpilot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", ".", "workspace directory")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall session timeout")

	runCmd.Flags().BoolVar(&autoRun, "auto", false, "dispatch permitted commands without confirmation")
	runCmd.Flags().StringVar(&maxRisk, "max-risk", "", "highest risk auto-dispatched: low, medium, high")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
