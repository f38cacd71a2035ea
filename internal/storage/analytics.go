package storage

import (
	"context"
	"fmt"
	"time"

	"moneypal/internal/core"
)

// Aggregation queries are read-only, run through the engine's retry
// wrapper, and see only committed data (WAL snapshot isolation).

// MonthlyTotals sums amount_cents per calendar month over the range of
// months containing from and to (both inclusive). Months with no expenses
// appear with a zero total; the result is ordered chronologically.
func (r *Repository) MonthlyTotals(ctx context.Context, from, to time.Time) ([]core.MonthTotal, error) {
	first := monthStart(from)
	last := monthStart(to)
	if last.Before(first) {
		first, last = last, first
	}

	rows, err := r.engine.Query(ctx, `
		SELECT substr(occurred_at, 1, 7) AS ym,
		       COALESCE(SUM(amount_cents), 0)
		  FROM expenses
		 WHERE occurred_at >= ? AND occurred_at < ?
		 GROUP BY ym`,
		formatTime(first), formatTime(last.AddDate(0, 1, 0)))
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	totals := map[string]int64{}
	for rows.Next() {
		var (
			ym    string
			cents int64
		)
		if err := rows.Scan(&ym, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		totals[ym] = cents
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly totals: %w", err)
	}

	var out []core.MonthTotal
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, core.MonthTotal{
			Month: m,
			Total: core.Money{Cents: totals[m.Format("2006-01")]},
		})
	}
	return out, nil
}

// WeeklyTotals sums amount_cents per calendar week over the range of weeks
// containing from and to (both inclusive). The week boundary follows the
// given policy; gap weeks are zero-filled.
func (r *Repository) WeeklyTotals(ctx context.Context, from, to time.Time, weekStart core.WeekStart) ([]core.WeekTotal, error) {
	first := weekStart.StartOf(from.UTC())
	last := weekStart.StartOf(to.UTC())
	if last.Before(first) {
		first, last = last, first
	}

	// Daily sums from SQL, folded into weeks here so the boundary policy
	// stays configurable without touching the query.
	rows, err := r.engine.Query(ctx, `
		SELECT substr(occurred_at, 1, 10) AS d,
		       COALESCE(SUM(amount_cents), 0)
		  FROM expenses
		 WHERE occurred_at >= ? AND occurred_at < ?
		 GROUP BY d`,
		formatTime(first), formatTime(last.AddDate(0, 0, 7)))
	if err != nil {
		return nil, fmt.Errorf("weekly totals: %w", err)
	}
	defer rows.Close()

	weekly := map[string]int64{}
	for rows.Next() {
		var (
			day   string
			cents int64
		)
		if err := rows.Scan(&day, &cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		d, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("parse day %q: %w", day, err)
		}
		wk := weekStart.StartOf(d)
		weekly[wk.Format("2006-01-02")] += cents
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weekly totals: %w", err)
	}

	var out []core.WeekTotal
	for w := first; !w.After(last); w = w.AddDate(0, 0, 7) {
		out = append(out, core.WeekTotal{
			WeekStart: w,
			Total:     core.Money{Cents: weekly[w.Format("2006-01-02")]},
		})
	}
	return out, nil
}

// CategoryBreakdown sums amount_cents per category within [from, to).
// Categories with no expenses in range are omitted.
func (r *Repository) CategoryBreakdown(ctx context.Context, from, to time.Time) (map[core.Category]core.Money, error) {
	rows, err := r.engine.Query(ctx, `
		SELECT category, COALESCE(SUM(amount_cents), 0)
		  FROM expenses
		 WHERE occurred_at >= ? AND occurred_at < ?
		 GROUP BY category`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := map[core.Category]core.Money{}
	for rows.Next() {
		var (
			category string
			cents    int64
		)
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		breakdown[core.Category(category)] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return breakdown, nil
}

// BudgetProgress joins the category totals of the month containing now
// with the configured budgets. A category appears when it has spending or
// a nonzero budget; budgeted-but-unspent categories report zero spend.
func (r *Repository) BudgetProgress(ctx context.Context, now time.Time) (map[core.Category]core.BudgetLine, error) {
	start := monthStart(now)
	spent, err := r.CategoryBreakdown(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}

	settings, err := r.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	progress := map[core.Category]core.BudgetLine{}
	for _, c := range core.Categories() {
		budget := settings.Budgets[c]
		if spent[c].Cents == 0 && budget == 0 {
			continue
		}
		progress[c] = core.BudgetLine{
			Spent:  spent[c],
			Budget: core.Money{Cents: budget},
		}
	}
	return progress, nil
}

// KPIMetrics computes total, count, integer mean and the first/last spend
// dates within [from, to). An empty range yields all-zero metrics.
func (r *Repository) KPIMetrics(ctx context.Context, from, to time.Time) (core.KPIMetrics, error) {
	var (
		m           core.KPIMetrics
		first, last *string
	)
	err := r.engine.ScanRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0),
		       COUNT(*),
		       MIN(occurred_at),
		       MAX(occurred_at)
		  FROM expenses
		 WHERE occurred_at >= ? AND occurred_at < ?`,
		[]any{formatTime(from), formatTime(to)},
		&m.Total.Cents, &m.Count, &first, &last)
	if err != nil {
		return core.KPIMetrics{}, fmt.Errorf("kpi metrics: %w", err)
	}

	if m.Count > 0 {
		m.Mean = core.Money{Cents: m.Total.Cents / m.Count}
	}
	if first != nil {
		m.First = parseTime(*first)
	}
	if last != nil {
		m.Last = parseTime(*last)
	}
	return m, nil
}

// TopTags returns the tags with the highest total spend, each with the
// number of distinct expenses carrying it.
func (r *Repository) TopTags(ctx context.Context, limit int) ([]core.TagSpend, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.engine.Query(ctx, `
		SELECT t.name,
		       COALESCE(SUM(e.amount_cents), 0) AS total_cents,
		       COUNT(DISTINCT e.id)
		  FROM tags t
		  JOIN expense_tags et ON et.tag_id = t.id
		  JOIN expenses e ON e.id = et.expense_id
		 GROUP BY t.name
		 ORDER BY total_cents DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top tags: %w", err)
	}
	defer rows.Close()

	var out []core.TagSpend
	for rows.Next() {
		var ts core.TagSpend
		if err := rows.Scan(&ts.Name, &ts.Total.Cents, &ts.Count); err != nil {
			return nil, fmt.Errorf("scan tag spend: %w", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag spend: %w", err)
	}
	return out, nil
}

// MonthlyCategoryTotals sums amount_cents per calendar month and category
// within [from, to). Month/category pairs with no expenses are omitted;
// the result is ordered chronologically, then by category.
func (r *Repository) MonthlyCategoryTotals(ctx context.Context, from, to time.Time) ([]core.MonthCategoryTotal, error) {
	rows, err := r.engine.Query(ctx, `
		SELECT substr(occurred_at, 1, 7) AS ym,
		       category,
		       COALESCE(SUM(amount_cents), 0)
		  FROM expenses
		 WHERE occurred_at >= ? AND occurred_at < ?
		 GROUP BY ym, category
		 ORDER BY ym ASC, category ASC`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("monthly category totals: %w", err)
	}
	defer rows.Close()

	var out []core.MonthCategoryTotal
	for rows.Next() {
		var (
			ym       string
			category string
			cents    int64
		)
		if err := rows.Scan(&ym, &category, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly category total: %w", err)
		}
		month, err := time.Parse("2006-01", ym)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", ym, err)
		}
		out = append(out, core.MonthCategoryTotal{
			Month:    month,
			Category: core.Category(category),
			Total:    core.Money{Cents: cents},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly category totals: %w", err)
	}
	return out, nil
}

// TagSpendingOverTime returns the monthly spend carrying the named tag for
// the most recent limit months with any such spending, chronological. An
// unknown tag yields an empty result, not an error.
func (r *Repository) TagSpendingOverTime(ctx context.Context, name string, limit int) ([]core.MonthTotal, error) {
	if limit <= 0 {
		limit = 12
	}
	normalized := core.NormalizeTags([]string{name})
	if len(normalized) == 0 {
		return nil, nil
	}

	rows, err := r.engine.Query(ctx, `
		SELECT substr(e.occurred_at, 1, 7) AS ym,
		       COALESCE(SUM(e.amount_cents), 0)
		  FROM expenses e
		  JOIN expense_tags et ON et.expense_id = e.id
		  JOIN tags t ON t.id = et.tag_id
		 WHERE t.name = ?
		 GROUP BY ym
		 ORDER BY ym DESC
		 LIMIT ?`, normalized[0], limit)
	if err != nil {
		return nil, fmt.Errorf("tag spending over time: %w", err)
	}
	defer rows.Close()

	var out []core.MonthTotal
	for rows.Next() {
		var (
			ym    string
			cents int64
		)
		if err := rows.Scan(&ym, &cents); err != nil {
			return nil, fmt.Errorf("scan tag month total: %w", err)
		}
		month, err := time.Parse("2006-01", ym)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", ym, err)
		}
		out = append(out, core.MonthTotal{Month: month, Total: core.Money{Cents: cents}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag month totals: %w", err)
	}

	// The query walks backwards for the LIMIT; present oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// TagSpendingByMonth breaks the most recent limit months with spending
// down by tag. Ordered chronologically, then by tag name.
func (r *Repository) TagSpendingByMonth(ctx context.Context, limit int) ([]core.TagMonthSpend, error) {
	if limit <= 0 {
		limit = 6
	}
	rows, err := r.engine.Query(ctx, `
		WITH months AS (
			SELECT substr(occurred_at, 1, 7) AS ym
			  FROM expenses
			 GROUP BY ym
			 ORDER BY ym DESC
			 LIMIT ?
		)
		SELECT substr(e.occurred_at, 1, 7) AS ym,
		       t.name,
		       COALESCE(SUM(e.amount_cents), 0)
		  FROM expenses e
		  JOIN expense_tags et ON et.expense_id = e.id
		  JOIN tags t ON t.id = et.tag_id
		 WHERE substr(e.occurred_at, 1, 7) IN (SELECT ym FROM months)
		 GROUP BY ym, t.name
		 ORDER BY ym ASC, t.name ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("tag spending by month: %w", err)
	}
	defer rows.Close()

	var out []core.TagMonthSpend
	for rows.Next() {
		var (
			ym    string
			name  string
			cents int64
		)
		if err := rows.Scan(&ym, &name, &cents); err != nil {
			return nil, fmt.Errorf("scan tag month spend: %w", err)
		}
		month, err := time.Parse("2006-01", ym)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", ym, err)
		}
		out = append(out, core.TagMonthSpend{Month: month, Name: name, Total: core.Money{Cents: cents}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag month spends: %w", err)
	}
	return out, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
