package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"billingrecon/internal/billing"
	"billingrecon/internal/cache"
	"billingrecon/internal/ledger"
	"billingrecon/internal/logger"
)

// DefaultYearsBack is how many years before the requested one the overview covers.
const DefaultYearsBack = 4

// APIResponse is the envelope of every response.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type scopeDetails struct {
	Field      string `json:"field"`
	Value      string `json:"value"`
	Suggestion string `json:"suggestion,omitempty"`
}

// AgingDetailsResponse is the payload of /api/aging/details.
type AgingDetailsResponse struct {
	Key       billing.GroupKey       `json:"key"`
	Label     string                 `json:"label"`
	Invoices  []billing.DebtDetail   `json:"invoices"`
	Customers []billing.CustomerDebt `json:"customers"`
}

func writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *billing.ScopeError
	if errors.As(err, &se) {
		writeJSON(w, http.StatusBadRequest, APIResponse{
			Status:  "error",
			Message: se.Error(),
			Data:    scopeDetails{Field: se.Field, Value: se.Value, Suggestion: se.Suggestion},
		})
		return
	}

	logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Report failed")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusServiceUnavailable, APIResponse{Status: "error", Message: "Request canceled"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: "Failed to compute report"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, APIResponse{Status: "error", Message: "no route for " + r.URL.Path})
}

// serve answers r with the cached or freshly computed result of compute.
func serve[T any](s *Server, w http.ResponseWriter, r *http.Request, key string, compute func(context.Context) (T, error)) {
	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))

	data, err := cache.GetOrCompute(r.Context(), s.cache, key, fresh, compute)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Status: "success", Data: data})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Status: "success", Message: "ok"})
}

// cutoffParam reads the cutoff, defaulting to the end of defaultYear.
func (s *Server) cutoffParam(q url.Values, defaultYear int) (time.Time, error) {
	if raw := q.Get("cutoff"); raw != "" {
		return billing.ParseCutoff(raw, s.engine.Location())
	}
	return billing.EndOfYear(defaultYear, s.engine.Location()), nil
}

func (s *Server) yearlyRevenue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := billing.ParseNumber("from", q.Get("from"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to := from
	if q.Get("to") != "" {
		if to, err = billing.ParseNumber("to", q.Get("to")); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	cutoff, err := s.cutoffParam(q, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	years := ledger.YearRange{From: from, To: to}
	serve(s, w, r, cache.Key("yearly", from, to, cutoff), func(ctx context.Context) ([]billing.YearlyRow, error) {
		return s.engine.YearlyRevenue(ctx, years, cutoff)
	})
}

func (s *Server) monthlyRevenue(w http.ResponseWriter, r *http.Request) {
	year, err := billing.ParseNumber("year", r.URL.Query().Get("year"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	serve(s, w, r, cache.Key("monthly", year), func(ctx context.Context) ([]billing.MonthlyRow, error) {
		return s.engine.MonthlyRevenue(ctx, year)
	})
}

// yearPeriod reads the required year and period parameters.
func yearPeriod(q url.Values) (int, int, error) {
	year, err := billing.ParseNumber("year", q.Get("year"))
	if err != nil {
		return 0, 0, err
	}
	period, err := billing.ParseNumber("period", q.Get("period"))
	if err != nil {
		return 0, 0, err
	}
	return year, period, nil
}

func (s *Server) dailyCollections(w http.ResponseWriter, r *http.Request) {
	year, period, err := yearPeriod(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	serve(s, w, r, cache.Key("daily", year, period), func(ctx context.Context) ([]billing.DailyRow, error) {
		return s.engine.DailyCollections(ctx, year, period)
	})
}

func (s *Server) outstanding(w http.ResponseWriter, r *http.Request) {
	year, period, err := yearPeriod(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	serve(s, w, r, cache.Key("outstanding", year, period), func(ctx context.Context) (billing.OutstandingSnapshot, error) {
		return s.engine.OutstandingSnapshot(ctx, year, period)
	})
}

func agingQuery(q url.Values) (billing.AgingQuery, error) {
	by, err := billing.ParseGroupBy(q.Get("group_by"))
	if err != nil {
		return billing.AgingQuery{}, err
	}
	year, err := billing.ParseOptionalNumber("year", q.Get("year"))
	if err != nil {
		return billing.AgingQuery{}, err
	}
	period, err := billing.ParsePeriodPredicate(q.Get("period_op"), q.Get("period"))
	if err != nil {
		return billing.AgingQuery{}, err
	}
	return billing.AgingQuery{Year: year, Period: period, GroupBy: by}, nil
}

func agingCacheParams(aq billing.AgingQuery) []interface{} {
	params := []interface{}{aq.GroupBy, "", "", ""}
	if aq.Year != nil {
		params[1] = *aq.Year
	}
	if aq.Period != nil {
		params[2], params[3] = aq.Period.Op, aq.Period.Month
	}
	return params
}

func (s *Server) agingGroups(w http.ResponseWriter, r *http.Request) {
	aq, err := agingQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	serve(s, w, r, cache.Key("aging-groups", agingCacheParams(aq)...), func(ctx context.Context) ([]billing.AgingGroup, error) {
		return s.engine.AgingGroups(ctx, aq)
	})
}

func (s *Server) agingDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	aq, err := agingQuery(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, ok := q["key"]; !ok {
		s.writeError(w, r, billing.RequiredParam("AgingDetails", "key"))
		return
	}
	key, err := s.engine.ResolveGroupKey(aq.GroupBy, q.Get("key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	params := append(agingCacheParams(aq), key.Value)
	serve(s, w, r, cache.Key("aging-details", params...), func(ctx context.Context) (AgingDetailsResponse, error) {
		details, err := s.engine.AgingDetails(ctx, aq, key)
		if err != nil {
			return AgingDetailsResponse{}, err
		}
		return AgingDetailsResponse{
			Key:       key,
			Label:     key.Label(),
			Invoices:  details,
			Customers: billing.GroupDetailsByCustomer(details),
		}, nil
	})
}

// channels takes an inclusive from/to date range.
func (s *Server) channels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.engine.Location()

	from, err := billing.ParseDate("from", q.Get("from"), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	last, err := billing.ParseDate("to", q.Get("to"), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to := last.AddDate(0, 0, 1)

	serve(s, w, r, cache.Key("channels", from, to), func(ctx context.Context) ([]billing.ChannelRow, error) {
		return s.engine.ChannelAttribution(ctx, from, to)
	})
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, period, err := yearPeriod(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cutoff, err := s.cutoffParam(q, year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	yearsBack := DefaultYearsBack
	if q.Get("years_back") != "" {
		if yearsBack, err = billing.ParseNumber("years_back", q.Get("years_back")); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	oq := billing.OverviewQuery{Year: year, Period: period, Cutoff: cutoff, YearsBack: yearsBack}
	serve(s, w, r, cache.Key("overview", year, period, cutoff, yearsBack), func(ctx context.Context) (billing.Overview, error) {
		return s.engine.Overview(ctx, oq)
	})
}
