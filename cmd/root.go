package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billingrecon/internal/config"
	"billingrecon/internal/logger"
)

var version = "1.0.0"

var (
	configPath string
	jsonOutput bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "billingrecon",
	Short: "Billing reconciliation and arrears reports",
	Long: `billingrecon reads a billing ledger of monthly invoices and their
settlements and reports how much was billed against how much was collected,
how much is still outstanding, how the debt ages across routes, tariffs and
customer categories, and which payment channels settlements arrived through.

The ledger is a SQLite file, a Postgres database or a Google Sheets tab,
selected with LEDGER_DRIVER. Reports never modify the ledger.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (TOML or YAML); defaults to $"+config.ConfigEnv)
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print reports as JSON instead of tables")
}
