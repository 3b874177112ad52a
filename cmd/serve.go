package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"billingrecon/internal/billing"
	"billingrecon/internal/cache"
	"billingrecon/internal/logger"
	"billingrecon/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reports as a JSON API",
	Long: `Start an HTTP server exposing every report under /api. Results are cached
for CACHE_TTL; add fresh=true to a request to recompute it.`,
	Example: `  billingrecon serve --addr :8080
  curl 'localhost:8080/api/aging/groups?group_by=category&year=2024'`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: SERVER_ADDR)")
	serveCmd.Flags().Bool("no-cache", false, "Disable the report cache")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	noCache, _ := cmd.Flags().GetBool("no-cache")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withEngine(ctx, func(engine *billing.Engine) error {
		var reports *cache.Cache
		if !noCache {
			reports = cache.New(cfg.Cache.Size, cfg.Cache.TTL)
		}

		log.Info().
			Str("addr", addr).
			Str("driver", cfg.Ledger.Driver).
			Bool("cache", reports != nil).
			Msg("Starting report server")

		return server.New(engine, reports).ListenAndServe(ctx, addr)
	})
}
