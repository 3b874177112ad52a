package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"billingrecon/internal/billing"
)

var outstandingCmd = &cobra.Command{
	Use:   "outstanding",
	Short: "Unsettled debt as of a billing period",
	Long: `Split the unsettled invoices into debt from prior years, from earlier
periods of the current year, and from the current period itself.`,
	Example: `  billingrecon outstanding --year 2024 --period 3`,
	RunE:    runOutstanding,
}

func init() {
	rootCmd.AddCommand(outstandingCmd)
	addYearPeriodFlags(outstandingCmd)
}

func runOutstanding(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	period, _ := cmd.Flags().GetInt("period")

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		snap, err := engine.OutstandingSnapshot(ctx, year, period)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), snap, outstandingView(snap))
	})
}

func outstandingView(snap billing.OutstandingSnapshot) tableView {
	return tableView{
		title:       fmt.Sprintf("Outstanding as of %02d/%d (%d unsettled invoices)", snap.AsOfPeriod, snap.AsOfYear, snap.UnsettledCount),
		headers:     []string{"Bucket", "Amount"},
		numericFrom: 1,
		rows: [][]string{
			{fmt.Sprintf("Before %d", snap.AsOfYear), formatAmount(snap.PriorYears)},
			{fmt.Sprintf("%d, periods before %02d", snap.AsOfYear, snap.AsOfPeriod), formatAmount(snap.CurrentYearPriorPeriods)},
			{fmt.Sprintf("Period %02d/%d", snap.AsOfPeriod, snap.AsOfYear), formatAmount(snap.CurrentPeriod)},
			{"Total", formatAmount(snap.Total)},
		},
	}
}
