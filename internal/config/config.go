package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"billingrecon/internal/billing"
	"billingrecon/internal/cache"
	"billingrecon/internal/ledger/sheetstore"
	"billingrecon/internal/logger"
)

// Ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSheets   = "sheets"
)

// ConfigEnv names the environment variable pointing at a config file.
const ConfigEnv = "BILLING_CONFIG"

type Config struct {
	Ledger     LedgerConfig
	Server     ServerConfig
	Cache      CacheConfig
	Report     ReportConfig
	Channels   ChannelConfig
	Categories []billing.Category
	Log        LogConfig
}

// LedgerConfig selects and addresses the billing ledger.
type LedgerConfig struct {
	Driver     string
	Path       string // sqlite file
	DSN        string // postgres connection string
	SheetURL   string `mapstructure:"sheet_url"`
	SheetRange string `mapstructure:"sheet_range"`
}

type ServerConfig struct {
	Addr string
}

type CacheConfig struct {
	TTL  time.Duration
	Size int
}

type ReportConfig struct {
	Timezone string
}

// ChannelConfig replaces the receipt-code rules when Rules is non-empty.
type ChannelConfig struct {
	Rules    []billing.Rule
	Fallback string
}

type LogConfig struct {
	Level      string
	Format     string
	TimeFormat string `mapstructure:"time_format"`
	Output     string
}

// Load reads configuration from path (or $BILLING_CONFIG) and the environment.
// Environment variables use the key with "." replaced by "_", e.g. LEDGER_DRIVER.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("ledger.driver", DriverSQLite)
	v.SetDefault("ledger.path", "billing.db")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.sheet_url", "")
	v.SetDefault("ledger.sheet_range", sheetstore.DefaultRange)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.size", cache.DefaultSize)
	v.SetDefault("report.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("channels.fallback", billing.DefaultChannel)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.time_format", time.RFC3339)
	v.SetDefault("log.output", "stderr")

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Ledger.Driver {
	case DriverSQLite:
		if c.Ledger.Path == "" {
			return fmt.Errorf("LEDGER_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("LEDGER_DSN is required for the postgres driver")
		}
	case DriverSheets:
		if c.Ledger.SheetURL == "" {
			return fmt.Errorf("LEDGER_SHEET_URL is required for the sheets driver")
		}
	default:
		return fmt.Errorf("unknown LEDGER_DRIVER %q (expected sqlite, postgres or sheets)", c.Ledger.Driver)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("SERVER_ADDR must not be empty")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("CACHE_SIZE must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Classifier(); err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	if _, err := c.CategoryMapper(); err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	return nil
}

// Location resolves the report timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE %q: %w", c.Report.Timezone, err)
	}
	return loc, nil
}

// Classifier builds the receipt-code classifier, falling back to the stock rules.
func (c *Config) Classifier() (*billing.Classifier, error) {
	rules := c.Channels.Rules
	if len(rules) == 0 {
		rules = billing.DefaultRules()
	}
	return billing.NewClassifier(rules, c.Channels.Fallback)
}

// CategoryMapper builds the tariff partition, falling back to the stock categories.
func (c *Config) CategoryMapper() (*billing.CategoryMapper, error) {
	categories := c.Categories
	if len(categories) == 0 {
		categories = billing.DefaultCategories()
	}
	return billing.NewCategoryMapper(categories)
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}
