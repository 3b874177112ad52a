package cmd

import (
	"context"
	"fmt"

	"billingrecon/internal/billing"
	"billingrecon/internal/config"
	"billingrecon/internal/ledger"
	"billingrecon/internal/ledger/gormstore"
	"billingrecon/internal/ledger/sheetstore"
	"billingrecon/internal/ledger/sqlstore"
	"billingrecon/internal/logger"
)

// openSource connects the configured ledger. The returned close func is never nil.
func openSource(ctx context.Context, c *config.Config) (ledger.Source, func() error, error) {
	const op = "openSource"
	log := logger.WithComponent("ledger-setup")
	noop := func() error { return nil }

	log.Info().Str("driver", c.Ledger.Driver).Msg("Opening ledger")

	switch c.Ledger.Driver {
	case config.DriverSQLite:
		if err := sqlstore.RunMigrations(c.Ledger.Path); err != nil {
			return nil, noop, fmt.Errorf("%s: %w", op, err)
		}
		store, err := sqlstore.Open(c.Ledger.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("%s: %w", op, err)
		}
		return store, store.Close, nil

	case config.DriverPostgres:
		store, err := gormstore.Open("postgres", c.Ledger.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("%s: %w", op, err)
		}
		return store, store.Close, nil

	case config.DriverSheets:
		loc, err := c.Location()
		if err != nil {
			return nil, noop, fmt.Errorf("%s: %w", op, err)
		}
		client, err := sheetstore.NewClient(ctx, c.Ledger.SheetURL)
		if err != nil {
			return nil, noop, fmt.Errorf("%s: %w", op, err)
		}
		return sheetstore.NewStore(client, c.Ledger.SheetRange, loc), noop, nil
	}

	return nil, noop, ledger.WrapError(c.Ledger.Driver, op, ledger.ErrUnsupportedDriver, "")
}

// newEngine builds the report engine over the configured ledger.
func newEngine(ctx context.Context, c *config.Config) (*billing.Engine, func() error, error) {
	source, closeFn, err := openSource(ctx, c)
	if err != nil {
		return nil, closeFn, err
	}

	loc, err := c.Location()
	if err != nil {
		return nil, closeFn, err
	}
	classifier, err := c.Classifier()
	if err != nil {
		return nil, closeFn, err
	}
	categories, err := c.CategoryMapper()
	if err != nil {
		return nil, closeFn, err
	}

	return billing.NewEngine(source, categories, classifier, loc), closeFn, nil
}

// withEngine runs fn against a freshly opened engine and closes the ledger afterwards.
func withEngine(ctx context.Context, fn func(*billing.Engine) error) error {
	engine, closeFn, err := newEngine(ctx, cfg)
	defer func() {
		if cerr := closeFn(); cerr != nil {
			log := logger.WithComponent("ledger-setup")
			log.Warn().Err(cerr).Msg("Failed to close ledger")
		}
	}()
	if err != nil {
		return err
	}
	return fn(engine)
}
