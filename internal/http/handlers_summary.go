package http

import (
	"net/http"
	"strconv"
	"time"

	"despesas/internal/cache"
	"despesas/internal/core"
	"despesas/internal/session"
)

type monthOverviewResponse struct {
	Month     core.MonthKey    `json:"month"`
	Planned   core.Money       `json:"planned"`
	Paid      core.Money       `json:"paid"`
	Remaining core.Money       `json:"remaining"`
	Budget    core.Money       `json:"budget"`
	Status    core.MonthStatus `json:"status"`
	Expenses  []core.Expense   `json:"expenses"`
}

func buildMonthOverview(sess *session.Session, month core.MonthKey) monthOverviewResponse {
	expenses := sess.Expenses()
	settings := sess.Settings()

	active := core.ActiveIn(expenses, month)
	core.SortByDueDay(active)

	planned := core.TotalPlanned(active)
	paid := core.TotalPaid(active, month)
	budget := core.EffectiveBudget(settings.Budgets, month)
	summary := core.MonthSummary{Planned: planned, Budget: budget}

	return monthOverviewResponse{
		Month:     month,
		Planned:   planned,
		Paid:      paid,
		Remaining: core.Remaining(budget, paid),
		Budget:    budget,
		Status:    summary.Status(),
		Expenses:  active,
	}
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	month, err := monthKeyPathValue(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "month must be in YYYY-MM form")
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load summary")
		return
	}

	key := cache.Key(sess.UID(), "month/"+month.String(), sess.Version())
	if cached, found := s.overviewCache.Get(key); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	overview := buildMonthOverview(sess, month)
	s.overviewCache.Set(key, overview)
	writeJSON(w, http.StatusOK, overview)
}

type yearMonthSummary struct {
	Planned core.Money       `json:"planned"`
	Budget  core.Money       `json:"budget"`
	Status  core.MonthStatus `json:"status"`
}

type yearSummaryResponse struct {
	Year   int                                `json:"year"`
	Months map[core.MonthKey]yearMonthSummary `json:"months"`
}

func (s *Server) handleYearSummary(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusUnprocessableEntity, "invalid year")
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load summary")
		return
	}

	key := cache.Key(sess.UID(), "year/"+strconv.Itoa(year), sess.Version())
	if cached, found := s.yearCache.Get(key); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	summary := core.YearSummary(sess.Expenses(), sess.Settings().Budgets, year)
	resp := yearSummaryResponse{
		Year:   year,
		Months: make(map[core.MonthKey]yearMonthSummary, len(summary)),
	}
	for month, ms := range summary {
		resp.Months[month] = yearMonthSummary{
			Planned: ms.Planned,
			Budget:  ms.Budget,
			Status:  ms.Status(),
		}
	}

	s.yearCache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrailingWindow(w http.ResponseWriter, r *http.Request) {
	months := 6
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 36 {
			writeError(w, http.StatusUnprocessableEntity, "months must be between 1 and 36")
			return
		}
		months = n
	}

	anchor := time.Now()
	if v := r.URL.Query().Get("anchor"); v != "" {
		key, err := core.ParseMonthKey(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "anchor must be in YYYY-MM form")
			return
		}
		anchor = key.Time()
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load summary")
		return
	}

	window := core.TrailingWindow(sess.Expenses(), sess.Settings().Budgets, anchor, months)
	writeJSON(w, http.StatusOK, window)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	month := core.MonthKeyOf(now)
	day := now.Day()
	limit := 5

	if v := r.URL.Query().Get("month"); v != "" {
		key, err := core.ParseMonthKey(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "month must be in YYYY-MM form")
			return
		}
		month = key
	}
	if v := r.URL.Query().Get("day"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 31 {
			writeError(w, http.StatusUnprocessableEntity, "day must be between 1 and 31")
			return
		}
		day = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load summary")
		return
	}

	active := core.ActiveIn(sess.Expenses(), month)
	writeJSON(w, http.StatusOK, core.Upcoming(active, month, day, limit))
}

func (s *Server) handlePaidByCategory(w http.ResponseWriter, r *http.Request) {
	month := core.MonthKeyOf(time.Now())
	if v := r.URL.Query().Get("month"); v != "" {
		key, err := core.ParseMonthKey(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "month must be in YYYY-MM form")
			return
		}
		month = key
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load summary")
		return
	}

	active := core.ActiveIn(sess.Expenses(), month)
	writeJSON(w, http.StatusOK, core.PaidByCategory(active, month))
}
