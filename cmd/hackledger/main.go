package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/layer-3/hackledger/internal/config"
	"github.com/spf13/cobra"
)

const (
	programName = "hackledger"
)

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func commonRun(cfg *config.Config) *slog.Logger {
	// Configure logger
	logLevel := slog.LevelInfo
	addSource := false
	if globalFlags.debug || cfg.Debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Wallet-signature authentication and ledger reconciliation service",
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(syncCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
