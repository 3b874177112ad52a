package billing

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"billingrecon/internal/ledger"
)

// OverviewQuery scopes the dashboard overview.
type OverviewQuery struct {
	Year      int       `json:"year"`
	Period    int       `json:"period"`
	Cutoff    time.Time `json:"cutoff"`
	YearsBack int       `json:"years_back"` // yearly rows cover Year-YearsBack..Year
}

// Overview bundles the reports a dashboard renders for one period.
type Overview struct {
	Query       OverviewQuery       `json:"query"`
	Yearly      []YearlyRow         `json:"yearly"`
	Monthly     []MonthlyRow        `json:"monthly"`
	Daily       []DailyRow          `json:"daily"`
	Outstanding OutstandingSnapshot `json:"outstanding"`
	Channels    []ChannelRow        `json:"channels"`
}

// Overview runs the yearly, monthly, daily, outstanding and channel reports
// concurrently and returns once all of them have finished.
func (e *Engine) Overview(ctx context.Context, q OverviewQuery) (Overview, error) {
	const op = "Overview"

	if q.YearsBack < 0 || q.YearsBack > 50 {
		return Overview{}, scopeError(op, "years_back", q.YearsBack, "must be between 0 and 50")
	}
	if !validYear(q.Year) || !validYear(q.Year-q.YearsBack) {
		return Overview{}, scopeError(op, "year", q.Year, "year must be between 1 and 9999")
	}
	if !validPeriod(q.Period) {
		return Overview{}, scopeError(op, "period", q.Period, "period must be between 1 and 12")
	}
	if q.Cutoff.IsZero() {
		return Overview{}, scopeError(op, "cutoff", "", "cutoff date is required")
	}

	out := Overview{Query: q}
	from, to := ledger.MonthWindow(q.Year, q.Period, e.loc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Yearly, err = e.YearlyRevenue(gctx, ledger.YearRange{From: q.Year - q.YearsBack, To: q.Year}, q.Cutoff)
		return err
	})
	g.Go(func() (err error) {
		out.Monthly, err = e.MonthlyRevenue(gctx, q.Year)
		return err
	})
	g.Go(func() (err error) {
		out.Daily, err = e.DailyCollections(gctx, q.Year, q.Period)
		return err
	})
	g.Go(func() (err error) {
		out.Outstanding, err = e.OutstandingSnapshot(gctx, q.Year, q.Period)
		return err
	})
	g.Go(func() (err error) {
		out.Channels, err = e.ChannelAttribution(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}
