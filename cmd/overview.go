package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"billingrecon/internal/billing"
	"billingrecon/internal/logger"
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "All dashboard reports for one billing period",
	Long: `Run the yearly, monthly, daily, outstanding and channel reports for one
billing period concurrently and print them together.`,
	Example: `  billingrecon overview --year 2024 --period 3
  billingrecon overview --year 2024 --period 3 --years-back 2 --cutoff 2024-03-31`,
	RunE: runOverview,
}

func init() {
	rootCmd.AddCommand(overviewCmd)
	addYearPeriodFlags(overviewCmd)
	overviewCmd.Flags().Int("years-back", 4, "Number of earlier years in the yearly table")
	overviewCmd.Flags().String("cutoff", "", "Cutoff for the yearly table (default: end of --year)")
}

func runOverview(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("overview")

	year, _ := cmd.Flags().GetInt("year")
	period, _ := cmd.Flags().GetInt("period")
	yearsBack, _ := cmd.Flags().GetInt("years-back")
	cutoffStr, _ := cmd.Flags().GetString("cutoff")

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		cutoff := billing.EndOfYear(year, engine.Location())
		if cutoffStr != "" {
			var err error
			if cutoff, err = billing.ParseCutoff(cutoffStr, engine.Location()); err != nil {
				return err
			}
		}

		log.Info().Int("year", year).Int("period", period).Int("years_back", yearsBack).Msg("Running overview")

		ov, err := engine.Overview(ctx, billing.OverviewQuery{Year: year, Period: period, Cutoff: cutoff, YearsBack: yearsBack})
		if err != nil {
			return err
		}

		yearly := tableView{
			title:       "Yearly revenue",
			headers:     []string{"Year", "Accrued", "Collected", "Outstanding", "Rate"},
			numericFrom: 1,
		}
		for _, r := range ov.Yearly {
			yearly.rows = append(yearly.rows, []string{
				strconv.Itoa(r.Year),
				formatAmount(r.AccruedRevenue),
				formatAmount(r.ActualCollected),
				formatAmount(r.Outstanding),
				formatPercent(r.AchievementRate),
			})
		}

		monthly := tableView{
			title:       fmt.Sprintf("Monthly revenue %d", year),
			headers:     []string{"Period", "Accrued", "Collected on time"},
			numericFrom: 1,
		}
		for _, r := range ov.Monthly {
			monthly.rows = append(monthly.rows, []string{
				fmt.Sprintf("%02d", r.Period),
				formatAmount(r.AccruedRevenue),
				formatAmount(r.ActualCollected),
			})
		}

		daily := tableView{
			title:       fmt.Sprintf("Daily collections %02d/%d", period, year),
			headers:     []string{"Date", "Invoices", "Collected"},
			numericFrom: 1,
		}
		for _, r := range ov.Daily {
			daily.rows = append(daily.rows, []string{
				r.Date.Format("2006-01-02"),
				strconv.Itoa(r.InvoiceCount),
				formatAmount(r.Collected),
			})
		}

		channels := channelView(fmt.Sprintf("Channels %02d/%d", period, year), ov.Channels)
		return render(cmd.OutOrStdout(), ov, yearly, monthly, daily, outstandingView(ov.Outstanding), channels)
	})
}
