package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"billingrecon/internal/billing"
)

// isolate clears the variables Load reads so the host environment cannot leak in.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigEnv, "LEDGER_DRIVER", "LEDGER_PATH", "LEDGER_DSN", "LEDGER_SHEET_URL",
		"LEDGER_SHEET_RANGE", "SERVER_ADDR", "CACHE_TTL", "CACHE_SIZE", "REPORT_TIMEZONE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billing.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.Ledger.Driver)
	require.Equal(t, "billing.db", cfg.Ledger.Path)
	require.Equal(t, "Ledger!A:J", cfg.Ledger.SheetRange)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, "info", cfg.GetLoggerConfig().Level)

	classifier, err := cfg.Classifier()
	require.NoError(t, err)
	require.Equal(t, billing.DefaultChannel, classifier.Fallback())
	require.Len(t, classifier.Rules(), len(billing.DefaultRules()))

	mapper, err := cfg.CategoryMapper()
	require.NoError(t, err)
	require.Len(t, mapper.Categories(), len(billing.DefaultCategories()))
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("LEDGER_DRIVER", "postgres")
	t.Setenv("LEDGER_DSN", "host=localhost dbname=billing sslmode=disable")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CACHE_SIZE", "10")
	t.Setenv("REPORT_TIMEZONE", "UTC")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.Ledger.Driver)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.Equal(t, 10, cfg.Cache.Size)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
[ledger]
driver = "sheets"
sheet_url = "https://docs.google.com/spreadsheets/d/1AbCdEfGhIjKlMnOpQrStUvWxYz/edit"

[channels]
fallback = "Cashier"

[[channels.rules]]
kind = "prefix"
pattern = "ACB"
channel = "ACB"

[[categories]]
name = "Residential"
codes = ["11", "12"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DriverSheets, cfg.Ledger.Driver)

	classifier, err := cfg.Classifier()
	require.NoError(t, err)
	code := "ACB-991"
	require.Equal(t, "ACB", classifier.Classify(&code))
	require.Equal(t, "Cashier", classifier.Classify(nil))

	mapper, err := cfg.CategoryMapper()
	require.NoError(t, err)
	require.Equal(t, "Residential", mapper.Lookup("12").Name)
	require.Equal(t, billing.OtherCategory, mapper.Lookup("31").Name)
}

func TestLoadFromEnvPath(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigEnv, writeConfig(t, "[server]\naddr = \"127.0.0.1:9000\"\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "unknown driver", env: map[string]string{"LEDGER_DRIVER": "mysql"}},
		{name: "postgres without dsn", env: map[string]string{"LEDGER_DRIVER": "postgres"}},
		{name: "sheets without url", env: map[string]string{"LEDGER_DRIVER": "sheets"}},
		{name: "bad timezone", env: map[string]string{"REPORT_TIMEZONE": "Mars/Olympus"}},
		{name: "negative cache size", env: map[string]string{"CACHE_SIZE": "-1"}},
		{name: "overlapping categories", file: `
[[categories]]
name = "A"
codes = ["11"]

[[categories]]
name = "B"
codes = ["11"]
`},
		{name: "bad rule", file: `
[[channels.rules]]
kind = "glob"
pattern = "V*"
channel = "V"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
