package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"billingrecon/internal/billing"
	"billingrecon/internal/logger"
	"billingrecon/pkg/models"
)

var agingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Outstanding debt grouped by route, tariff or customer category",
}

var agingGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Debt per group",
	Long: `Group unsettled invoices by --group-by (route, tariff or category) and report
per group the number of indebted customers, unpaid periods, total debt and
share of all debt in scope.

--period restricts the billing month; --period-op compares it (=, !=, <, <=, >, >=).`,
	Example: `  # Debt per customer category for 2024
  billingrecon aging groups --group-by category --year 2024

  # Debt per route for the first half of any year
  billingrecon aging groups --group-by route --period-op "<=" --period 6`,
	RunE: runAgingGroups,
}

var agingDetailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Unpaid invoices behind one group",
	Example: `  billingrecon aging details --group-by category --key Domestic --year 2024
  billingrecon aging details --group-by route --key R01 --by-customer`,
	RunE: runAgingDetails,
}

func init() {
	rootCmd.AddCommand(agingCmd)
	agingCmd.AddCommand(agingGroupsCmd, agingDetailsCmd)

	for _, c := range []*cobra.Command{agingGroupsCmd, agingDetailsCmd} {
		c.Flags().String("group-by", "category", "Grouping: route, tariff or category")
		c.Flags().String("year", "", "Billing year (default: all years)")
		c.Flags().String("period", "", "Billing period 1-12 (default: all periods)")
		c.Flags().String("period-op", "=", "Comparison applied to --period")
	}
	agingDetailsCmd.Flags().String("key", "", "Group value: a route, a tariff code or a category name")
	agingDetailsCmd.Flags().Bool("by-customer", false, "Fold invoices per customer, largest debt first")
	_ = agingDetailsCmd.MarkFlagRequired("key")
}

func agingQueryFlags(cmd *cobra.Command) (billing.AgingQuery, error) {
	groupBy, _ := cmd.Flags().GetString("group-by")
	yearStr, _ := cmd.Flags().GetString("year")
	periodStr, _ := cmd.Flags().GetString("period")
	periodOp, _ := cmd.Flags().GetString("period-op")

	by, err := billing.ParseGroupBy(groupBy)
	if err != nil {
		return billing.AgingQuery{}, err
	}
	year, err := billing.ParseOptionalNumber("year", yearStr)
	if err != nil {
		return billing.AgingQuery{}, err
	}
	period, err := billing.ParsePeriodPredicate(periodOp, periodStr)
	if err != nil {
		return billing.AgingQuery{}, err
	}
	return billing.AgingQuery{Year: year, Period: period, GroupBy: by}, nil
}

func runAgingGroups(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("aging")

	q, err := agingQueryFlags(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		log.Info().Str("group_by", string(q.GroupBy)).Msg("Running aging report")

		groups, err := engine.AgingGroups(ctx, q)
		if err != nil {
			return err
		}

		view := tableView{
			title:       "Debt by " + string(q.GroupBy),
			headers:     []string{"Group", "Customers", "Periods", "Debt", "Share"},
			numericFrom: 1,
		}
		for _, g := range groups {
			view.rows = append(view.rows, []string{
				g.Label,
				strconv.Itoa(g.CustomerCount),
				strconv.Itoa(g.TotalPeriods),
				formatAmount(g.TotalDebt),
				formatPercent(g.Percentage),
			})
		}
		return render(cmd.OutOrStdout(), groups, view)
	})
}

func runAgingDetails(cmd *cobra.Command, args []string) error {
	q, err := agingQueryFlags(cmd)
	if err != nil {
		return err
	}
	keyStr, _ := cmd.Flags().GetString("key")
	byCustomer, _ := cmd.Flags().GetBool("by-customer")

	ctx := context.Background()
	return withEngine(ctx, func(engine *billing.Engine) error {
		key, err := engine.ResolveGroupKey(q.GroupBy, keyStr)
		if err != nil {
			return err
		}

		details, err := engine.AgingDetails(ctx, q, key)
		if err != nil {
			return err
		}

		if byCustomer {
			customers := billing.GroupDetailsByCustomer(details)
			view := tableView{
				title:       "Debt by customer in " + key.Label(),
				headers:     []string{"Customer", "Periods", "Debt"},
				numericFrom: 1,
			}
			for _, c := range customers {
				view.rows = append(view.rows, []string{
					models.FormatCustomerID(c.CustomerID),
					strconv.Itoa(c.PeriodCount),
					formatAmount(c.TotalDebt),
				})
			}
			return render(cmd.OutOrStdout(), customers, view)
		}

		view := tableView{
			title:       fmt.Sprintf("Unpaid invoices in %s", key.Label()),
			headers:     []string{"Customer", "Period", "Tariff", "Route", "Amount"},
			numericFrom: 4,
		}
		for _, d := range details {
			view.rows = append(view.rows, []string{
				models.FormatCustomerID(d.CustomerID),
				d.Period.String(),
				d.TariffCode,
				d.RouteGroup,
				formatAmount(d.Amount),
			})
		}
		return render(cmd.OutOrStdout(), details, view)
	})
}
