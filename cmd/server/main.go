package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/himanishpuri/Podometre/internal/config"
	"github.com/himanishpuri/Podometre/pkg/podometre"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "podometre-server",
	Short: "HTTP service estimating step counts from vertical acceleration",
	Long: `podometre-server accepts batches of vertical acceleration samples,
keeps one analysis window per session and reports the step count derived
from the dominant gait frequency.

Configuration is read from podometre.yaml (., ~/.config/podometre,
/etc/podometre), PODOMETRE_* environment variables and flags.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (default: search podometre.yaml)")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.Int("sample-rate", 100, "default sampling frequency in Hz")
	flags.Int("window-size", 1024, "default analysis window (power of two)")
	flags.Float64("min-hz", 1, "lower cadence band bound in Hz")
	flags.Float64("max-hz", 3, "upper cadence band bound in Hz (0 = unbounded)")
	flags.String("reset-policy", "reset", "buffer policy: reset or sliding")
	flags.String("elapsed-mode", "supplied", "elapsed time source: supplied or window")
	flags.Int("max-sessions", 10000, "maximum live sessions (0 = unlimited)")
	flags.Bool("history", true, "record estimate history")
	flags.String("history-dsn", ":memory:", "sqlite path for the estimate history")
	flags.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	root := cfg.Logger(os.Stdout)
	log := root.WithPrefix("server")

	service, err := podometre.NewService(cfg.ServiceOptions(root.WithPrefix("podometre"))...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, &cfg.Server, log)
	return server.Run(ctx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
