package main

import (
	"context"
	"fmt"
	"os"

	"github.com/himanishpuri/Podometre/internal/config"
	"github.com/himanishpuri/Podometre/pkg/logger"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configFile   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "podometre-cli",
	Short: "Step counting from vertical acceleration recordings",
	Long: `podometre-cli runs the step estimator over recorded acceleration traces
(WAV, CSV or JSON), streams recordings to a running podometre-server and
inspects server sessions.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: search podometre.yaml)")
	pf.StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	pf.String("log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(newAnalyzeCmd(), newPushCmd(), newStatusCmd(), newConfigCmd())
}

// loadConfig reads the shared configuration with the command's flags applied.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func cliLogger(cfg *config.Config) *logger.Logger {
	return cfg.Logger(os.Stderr).WithPrefix("cli")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
