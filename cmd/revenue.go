package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"billingrecon/internal/billing"
	"billingrecon/internal/ledger"
	"billingrecon/internal/logger"
)

var revenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "Compare billed revenue with collections",
	Long: `Reconcile what was billed against what was collected.

  yearly   accrued revenue, collections and achievement rate per billing year
  monthly  accrual and on-time collection per billing period of one year
  daily    settlements per calendar day for one billing period`,
}

var revenueYearlyCmd = &cobra.Command{
	Use:   "yearly",
	Short: "Yearly revenue reconciliation",
	Long: `Reconcile each billing year in [--from, --to].

Settlements after --cutoff are ignored. A date cutoff includes the whole day.
Batch write-offs settled in the year are excluded from the accrual base. The
adjustment is invoiced minus settled over the year's invoices settled in the
same year up to the cutoff, and is subtracted from the base.`,
	Example: `  # Reconcile 2022 through 2024 as of the end of 2024
  billingrecon revenue yearly --from 2022 --to 2024 --cutoff 2024-12-31

  # Single year, JSON output
  billingrecon revenue yearly --from 2024 --json`,
	RunE: runRevenueYearly,
}

var revenueMonthlyCmd = &cobra.Command{
	Use:     "monthly",
	Short:   "Monthly accrual and on-time collection",
	Example: `  billingrecon revenue monthly --year 2024`,
	RunE:    runRevenueMonthly,
}

var revenueDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Daily collections for one billing period",
	Long: `List, for each day of the billing month, how many of the period's invoices
were settled that day and how much was collected in total on that day.`,
	Example: `  billingrecon revenue daily --year 2024 --period 3`,
	RunE:    runRevenueDaily,
}

func init() {
	rootCmd.AddCommand(revenueCmd)
	revenueCmd.AddCommand(revenueYearlyCmd, revenueMonthlyCmd, revenueDailyCmd)

	revenueYearlyCmd.Flags().Int("from", 0, "First billing year")
	revenueYearlyCmd.Flags().Int("to", 0, "Last billing year (default: --from)")
	revenueYearlyCmd.Flags().String("cutoff", "", "Cutoff date YYYY-MM-DD or RFC 3339 timestamp (default: end of --to)")
	_ = revenueYearlyCmd.MarkFlagRequired("from")

	revenueMonthlyCmd.Flags().Int("year", 0, "Billing year")
	_ = revenueMonthlyCmd.MarkFlagRequired("year")

	addYearPeriodFlags(revenueDailyCmd)
}

func addYearPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "Billing year")
	cmd.Flags().Int("period", 0, "Billing period (month 1-12)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("period")
}

func runRevenueYearly(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("revenue")

	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	if to == 0 {
		to = from
	}
	cutoffStr, _ := cmd.Flags().GetString("cutoff")

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		cutoff := billing.EndOfYear(to, engine.Location())
		if cutoffStr != "" {
			var err error
			if cutoff, err = billing.ParseCutoff(cutoffStr, engine.Location()); err != nil {
				return err
			}
		}

		log.Info().
			Int("from", from).
			Int("to", to).
			Time("cutoff", cutoff).
			Msg("Running yearly revenue reconciliation")

		rows, err := engine.YearlyRevenue(ctx, ledger.YearRange{From: from, To: to}, cutoff)
		if err != nil {
			return err
		}

		view := tableView{
			title:       fmt.Sprintf("Yearly revenue %d-%d (cutoff %s)", from, to, cutoff.Format("2006-01-02 15:04")),
			headers:     []string{"Year", "Invoices", "Excluded", "Base accrual", "Adjustment", "Accrued", "Collected", "Outstanding", "Rate", "Prior year"},
			numericFrom: 1,
		}
		for _, r := range rows {
			view.rows = append(view.rows, []string{
				strconv.Itoa(r.Year),
				strconv.Itoa(r.InvoiceCount),
				formatAmount(r.Excluded),
				formatAmount(r.BaseAccrual),
				formatAmount(r.Adjustment),
				formatAmount(r.AccruedRevenue),
				formatAmount(r.ActualCollected),
				formatAmount(r.Outstanding),
				formatPercent(r.AchievementRate),
				formatAmount(r.PriorYearAccrual),
			})
		}
		return render(cmd.OutOrStdout(), rows, view)
	})
}

func runRevenueMonthly(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		rows, err := engine.MonthlyRevenue(ctx, year)
		if err != nil {
			return err
		}

		view := tableView{
			title:       fmt.Sprintf("Monthly revenue %d", year),
			headers:     []string{"Period", "Invoices", "Accrued", "Collected on time"},
			numericFrom: 1,
		}
		for _, r := range rows {
			view.rows = append(view.rows, []string{
				fmt.Sprintf("%02d/%d", r.Period, year),
				strconv.Itoa(r.InvoiceCount),
				formatAmount(r.AccruedRevenue),
				formatAmount(r.ActualCollected),
			})
		}
		return render(cmd.OutOrStdout(), rows, view)
	})
}

func runRevenueDaily(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	period, _ := cmd.Flags().GetInt("period")

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		rows, err := engine.DailyCollections(ctx, year, period)
		if err != nil {
			return err
		}

		view := tableView{
			title:       fmt.Sprintf("Daily collections for period %02d/%d", period, year),
			headers:     []string{"Date", "Invoices settled", "Collected"},
			numericFrom: 1,
		}
		for _, r := range rows {
			view.rows = append(view.rows, []string{
				r.Date.Format("2006-01-02"),
				strconv.Itoa(r.InvoiceCount),
				formatAmount(r.Collected),
			})
		}
		return render(cmd.OutOrStdout(), rows, view)
	})
}
