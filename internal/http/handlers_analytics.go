package http

import (
	"net/http"
	"strings"
	"time"

	"moneypal/internal/core"
)

// rangeParams resolves the from/to window of an analytics request. Both
// bounds are inclusive dates; handlers feeding a half-open repository
// query push the end out with endExclusive. When a bound is missing it
// defaults to the last six months ending now.
func rangeParams(r *http.Request) (from, to time.Time, err error) {
	from, err = parseDateParam(r, "from")
	if err != nil {
		return
	}
	to, err = parseDateParam(r, "to")
	if err != nil {
		return
	}
	now := time.Now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, -6, 0)
	}
	return
}

type monthTotalJSON struct {
	Month      string `json:"month"`
	TotalCents int64  `json:"total_cents"`
}

func (s *Server) handleMonthlyTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		writeBadRequest(w, r, "date bounds must be YYYY-MM-DD")
		return
	}

	totals, err := s.store.MonthlyTotals(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]monthTotalJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthTotalJSON{
			Month:      t.Month.Format("2006-01"),
			TotalCents: t.Total.Cents,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

type weekTotalJSON struct {
	WeekStart  string `json:"week_start"`
	TotalCents int64  `json:"total_cents"`
}

func (s *Server) handleWeeklyTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		writeBadRequest(w, r, "date bounds must be YYYY-MM-DD")
		return
	}

	// The configured boundary policy applies unless the request overrides it.
	weekStart := s.weekStart
	if v := strings.TrimSpace(r.URL.Query().Get("week_start")); v != "" {
		ws, ok := core.ParseWeekStart(v)
		if !ok {
			writeBadRequest(w, r, "week_start must be 'monday' or 'sunday'")
			return
		}
		weekStart = ws
	}

	totals, err := s.store.WeeklyTotals(r.Context(), from, to, weekStart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]weekTotalJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, weekTotalJSON{
			WeekStart:  t.WeekStart.Format("2006-01-02"),
			TotalCents: t.Total.Cents,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		writeBadRequest(w, r, "date bounds must be YYYY-MM-DD")
		return
	}

	breakdown, err := s.store.CategoryBreakdown(r.Context(), from, endExclusive(to))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make(map[string]int64, len(breakdown))
	for c, m := range breakdown {
		out[string(c)] = m.Cents
	}
	writeJSON(w, r, http.StatusOK, out)
}

type budgetLineJSON struct {
	SpentCents  int64 `json:"spent_cents"`
	BudgetCents int64 `json:"budget_cents"`
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	progress, err := s.store.BudgetProgress(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make(map[string]budgetLineJSON, len(progress))
	for c, line := range progress {
		out[string(c)] = budgetLineJSON{
			SpentCents:  line.Spent.Cents,
			BudgetCents: line.Budget.Cents,
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

type kpiJSON struct {
	TotalCents int64  `json:"total_cents"`
	Count      int64  `json:"count"`
	MeanCents  int64  `json:"mean_cents"`
	First      string `json:"first,omitempty"`
	Last       string `json:"last,omitempty"`
}

func (s *Server) handleKPIMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		writeBadRequest(w, r, "date bounds must be YYYY-MM-DD")
		return
	}

	m, err := s.store.KPIMetrics(r.Context(), from, endExclusive(to))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := kpiJSON{
		TotalCents: m.Total.Cents,
		Count:      m.Count,
		MeanCents:  m.Mean.Cents,
	}
	if !m.First.IsZero() {
		out.First = m.First.Format("2006-01-02")
	}
	if !m.Last.IsZero() {
		out.Last = m.Last.Format("2006-01-02")
	}
	writeJSON(w, r, http.StatusOK, out)
}

type monthCategoryJSON struct {
	Month      string `json:"month"`
	Category   string `json:"category"`
	TotalCents int64  `json:"total_cents"`
}

func (s *Server) handleMonthlyCategoryTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		writeBadRequest(w, r, "date bounds must be YYYY-MM-DD")
		return
	}

	totals, err := s.store.MonthlyCategoryTotals(r.Context(), from, endExclusive(to))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]monthCategoryJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthCategoryJSON{
			Month:      t.Month.Format("2006-01"),
			Category:   string(t.Category),
			TotalCents: t.Total.Cents,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleTagTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag == "" {
		writeBadRequest(w, r, "tag parameter is required")
		return
	}

	totals, err := s.store.TagSpendingOverTime(r.Context(), tag, parseIntParam(r, "months", 12))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]monthTotalJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthTotalJSON{
			Month:      t.Month.Format("2006-01"),
			TotalCents: t.Total.Cents,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

type tagMonthSpendJSON struct {
	Month      string `json:"month"`
	Name       string `json:"name"`
	TotalCents int64  `json:"total_cents"`
}

func (s *Server) handleTagsMonthly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	spends, err := s.store.TagSpendingByMonth(r.Context(), parseIntParam(r, "months", 6))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tagMonthSpendJSON, 0, len(spends))
	for _, t := range spends {
		out = append(out, tagMonthSpendJSON{
			Month:      t.Month.Format("2006-01"),
			Name:       t.Name,
			TotalCents: t.Total.Cents,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

type tagSpendJSON struct {
	Name       string `json:"name"`
	TotalCents int64  `json:"total_cents"`
	Count      int64  `json:"count"`
}

func (s *Server) handleTopTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	top, err := s.store.TopTags(r.Context(), parseIntParam(r, "limit", 10))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tagSpendJSON, 0, len(top))
	for _, t := range top {
		out = append(out, tagSpendJSON{Name: t.Name, TotalCents: t.Total.Cents, Count: t.Count})
	}
	writeJSON(w, r, http.StatusOK, out)
}
