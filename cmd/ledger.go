package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billingrecon/internal/config"
	"billingrecon/internal/ledger"
	"billingrecon/internal/ledger/gormstore"
	"billingrecon/internal/ledger/sheetstore"
	"billingrecon/internal/ledger/sqlstore"
	"billingrecon/internal/logger"
	"billingrecon/pkg/models"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Prepare a local ledger database",
	Long: `Tooling for SQLite and Postgres ledgers: create the invoices table and load
CSV exports of the ledger sheet into it. Reports never write to the ledger;
a Google Sheets ledger is read-only.`,
}

var ledgerMigrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "Create or upgrade the invoices table",
	Example: `  LEDGER_PATH=billing.db billingrecon ledger migrate`,
	RunE:    runLedgerMigrate,
}

var ledgerLoadCmd = &cobra.Command{
	Use:   "load <file.csv>",
	Short: "Append a CSV export of the ledger sheet",
	Long: `Append the rows of a CSV export to the ledger. Columns follow the ledger
sheet: customer, month, year, invoiced, settled, settled at, agent, tariff,
route, receipt. The first line is a header. Malformed rows are skipped with
a warning.`,
	Example: `  billingrecon ledger load export-2024.csv`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLedgerLoad,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerMigrateCmd, ledgerLoadCmd)
}

// inserter is implemented by the writable ledger stores.
type inserter interface {
	Insert(ctx context.Context, records []models.InvoiceRecord) (int, error)
	Close() error
}

// openWritable migrates and opens the configured ledger for loading.
func openWritable(c *config.Config) (inserter, error) {
	const op = "openWritable"

	switch c.Ledger.Driver {
	case config.DriverSQLite:
		if err := sqlstore.RunMigrations(c.Ledger.Path); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		store, err := sqlstore.Open(c.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return store, nil

	case config.DriverPostgres:
		store, err := gormstore.Open("postgres", c.Ledger.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return store, nil
	}

	return nil, ledger.WrapError(c.Ledger.Driver, op, ledger.ErrUnsupportedDriver, "ledger is read-only")
}

func runLedgerMigrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ledger-migrate")

	store, err := openWritable(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Info().Str("driver", cfg.Ledger.Driver).Msg("Ledger schema is up to date")
	fmt.Fprintln(cmd.OutOrStdout(), "Ledger schema is up to date")
	return nil
}

func runLedgerLoad(cmd *cobra.Command, args []string) error {
	const op = "runLedgerLoad"
	log := logger.WithComponent("ledger-load")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("%s: failed to open %s: %w", op, args[0], err)
	}
	defer f.Close()

	records, err := sheetstore.ReadCSV(f, loc, log)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	store, err := openWritable(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Insert(context.Background(), records)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info().Str("file", args[0]).Int("inserted", n).Msg("Ledger rows loaded")
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d invoice(s) from %s\n", n, args[0])
	return nil
}
