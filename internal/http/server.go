// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"moneypal/internal/core"
	"moneypal/internal/log"
)

// Store is the persistence surface the handlers need. *storage.Repository
// satisfies it.
type Store interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, patch core.ExpensePatch) error
	DeleteExpense(ctx context.Context, id int64) error
	ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error)

	ListTags(ctx context.Context) ([]core.Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	GetSettings(ctx context.Context) (core.Settings, error)
	UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error)

	MonthlyTotals(ctx context.Context, from, to time.Time) ([]core.MonthTotal, error)
	WeeklyTotals(ctx context.Context, from, to time.Time, weekStart core.WeekStart) ([]core.WeekTotal, error)
	MonthlyCategoryTotals(ctx context.Context, from, to time.Time) ([]core.MonthCategoryTotal, error)
	CategoryBreakdown(ctx context.Context, from, to time.Time) (map[core.Category]core.Money, error)
	BudgetProgress(ctx context.Context, now time.Time) (map[core.Category]core.BudgetLine, error)
	KPIMetrics(ctx context.Context, from, to time.Time) (core.KPIMetrics, error)
	TopTags(ctx context.Context, limit int) ([]core.TagSpend, error)
	TagSpendingOverTime(ctx context.Context, name string, limit int) ([]core.MonthTotal, error)
	TagSpendingByMonth(ctx context.Context, limit int) ([]core.TagMonthSpend, error)

	Reset(ctx context.Context) error
}

type Server struct {
	http.Server
	store     Store
	weekStart core.WeekStart
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, store Store, weekStart core.WeekStart, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		store:     store,
		weekStart: weekStart,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/expenses", s.handleExpenses)
	mux.HandleFunc("/api/expenses/", s.handleExpenseByID)
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/tags/", s.handleTagByID)
	mux.HandleFunc("/api/settings", s.handleSettings)

	mux.HandleFunc("/api/analytics/monthly", s.handleMonthlyTotals)
	mux.HandleFunc("/api/analytics/weekly", s.handleWeeklyTotals)
	mux.HandleFunc("/api/analytics/monthly-categories", s.handleMonthlyCategoryTotals)
	mux.HandleFunc("/api/analytics/categories", s.handleCategoryBreakdown)
	mux.HandleFunc("/api/analytics/budget", s.handleBudgetProgress)
	mux.HandleFunc("/api/analytics/kpi", s.handleKPIMetrics)
	mux.HandleFunc("/api/analytics/tags", s.handleTopTags)
	mux.HandleFunc("/api/analytics/tag-timeline", s.handleTagTimeline)
	mux.HandleFunc("/api/analytics/tags-monthly", s.handleTagsMonthly)

	mux.HandleFunc("/api/reset", s.handleReset)

	s.Handler = log.RequestMiddleware(logger)(mux)
	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady probes the database through a cheap read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetSettings(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := s.store.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
