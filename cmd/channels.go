package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"billingrecon/internal/billing"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Settlements per payment channel",
	Long: `Attribute the settlements made between --from and --to (both inclusive)
to payment channels by their receipt code. Settlements without a receipt code
are reported under the fallback channel.`,
	Example: `  billingrecon channels --from 2024-03-01 --to 2024-03-31`,
	RunE:    runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)

	channelsCmd.Flags().String("from", "", "First settlement date (YYYY-MM-DD)")
	channelsCmd.Flags().String("to", "", "Last settlement date (YYYY-MM-DD)")
	_ = channelsCmd.MarkFlagRequired("from")
	_ = channelsCmd.MarkFlagRequired("to")
}

func runChannels(cmd *cobra.Command, args []string) error {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		from, err := billing.ParseDate("from", fromStr, engine.Location())
		if err != nil {
			return err
		}
		last, err := billing.ParseDate("to", toStr, engine.Location())
		if err != nil {
			return err
		}

		rows, err := engine.ChannelAttribution(ctx, from, last.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), rows, channelView(fmt.Sprintf("Channels %s to %s", fromStr, toStr), rows))
	})
}

func channelView(title string, rows []billing.ChannelRow) tableView {
	view := tableView{
		title:       title,
		headers:     []string{"Channel", "Settlements", "Amount", "Share"},
		numericFrom: 1,
	}
	for _, r := range rows {
		view.rows = append(view.rows, []string{
			r.Channel,
			strconv.Itoa(r.Count),
			formatAmount(r.Amount),
			formatPercent(r.Percentage),
		})
	}
	return view
}
