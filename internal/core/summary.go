package core

import "time"

// WeekStart selects the weekday that opens an aggregation week.
type WeekStart int

const (
	WeekStartMonday WeekStart = iota
	WeekStartSunday
)

// ParseWeekStart maps a configuration string to a WeekStart policy.
func ParseWeekStart(s string) (WeekStart, bool) {
	switch s {
	case "", "monday":
		return WeekStartMonday, true
	case "sunday":
		return WeekStartSunday, true
	}
	return WeekStartMonday, false
}

// StartOf truncates t to the beginning of its aggregation week.
func (w WeekStart) StartOf(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := int(t.Weekday()-time.Monday+7) % 7
	if w == WeekStartSunday {
		offset = int(t.Weekday())
	}
	return t.AddDate(0, 0, -offset)
}

// MonthTotal is the spend for one calendar month.
type MonthTotal struct {
	Month time.Time // first day of the month
	Total Money
}

// WeekTotal is the spend for one calendar week.
type WeekTotal struct {
	WeekStart time.Time
	Total     Money
}

// BudgetLine pairs the current-month spend of a category with its budget.
type BudgetLine struct {
	Spent  Money
	Budget Money
}

// KPIMetrics is a compact rollup over a date range.
type KPIMetrics struct {
	Total Money
	Count int64
	Mean  Money // integer division of Total by Count, zero when empty
	First time.Time
	Last  time.Time
}

// TagSpend is the total spend attributed to one tag.
type TagSpend struct {
	Name  string
	Total Money
	Count int64 // distinct expenses carrying the tag
}

// MonthCategoryTotal is the spend of one category within one month.
type MonthCategoryTotal struct {
	Month    time.Time // first day of the month
	Category Category
	Total    Money
}

// TagMonthSpend is the spend attributed to one tag within one month.
type TagMonthSpend struct {
	Month time.Time
	Name  string
	Total Money
}
