package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category is one of the fixed spending categories.
type Category string

const (
	CategoryFun       Category = "Fun"
	CategoryGroceries Category = "groceris" // historical spelling, kept for data compatibility
	CategoryTravel    Category = "travel"
	CategoryHomeExp   Category = "home exp"
	CategoryMisc      Category = "misc"
)

// Categories returns the recognized category set in display order.
func Categories() []Category {
	return []Category{CategoryFun, CategoryGroceries, CategoryTravel, CategoryHomeExp, CategoryMisc}
}

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	switch c {
	case CategoryFun, CategoryGroceries, CategoryTravel, CategoryHomeExp, CategoryMisc:
		return true
	}
	return false
}

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrStorageBusy        = errors.New("database busy")
	ErrStorageUnavailable = errors.New("database unavailable")
	ErrSchema             = errors.New("schema mismatch")
)

var (
	ErrZeroAmount      = fmt.Errorf("%w: amount must be nonzero", ErrValidation)
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrZeroDate        = fmt.Errorf("%w: date cannot be zero", ErrValidation)
	ErrNoteTooLong     = fmt.Errorf("%w: note too long (max 200 characters)", ErrValidation)
	ErrNegativeAmount  = fmt.Errorf("%w: value must not be negative", ErrValidation)
)

type (
	// Expense is one recorded spend. Amounts are stored in minor units
	// (cents) so no floating point ever enters the pipeline.
	Expense struct {
		ID         int64
		Amount     Money
		Category   Category
		Note       string
		OccurredAt time.Time
		CreatedAt  time.Time
		Tags       []string
	}

	// Tag is a normalized, deduplicated label linked to expenses.
	Tag struct {
		ID   int64
		Name string
	}

	// Settings is the single-row application configuration. Budgets maps
	// every recognized category to its monthly budget in cents; categories
	// without an explicit budget default to zero.
	Settings struct {
		MonthlyIncomeCents int64
		SavingsGoalCents   int64
		Budgets            map[Category]int64
	}
)

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, string(e.Category))
	}
	if e.OccurredAt.IsZero() {
		return ErrZeroDate
	}
	if len(e.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}

func (s Settings) Validate() error {
	if s.MonthlyIncomeCents < 0 {
		return fmt.Errorf("%w: monthly income", ErrNegativeAmount)
	}
	if s.SavingsGoalCents < 0 {
		return fmt.Errorf("%w: savings goal", ErrNegativeAmount)
	}
	for c, v := range s.Budgets {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
		}
		if v < 0 {
			return fmt.Errorf("%w: budget for %q", ErrNegativeAmount, string(c))
		}
	}
	return nil
}

// ExpensePatch is a partial update of an expense. Nil fields are left
// unchanged; a non-nil Tags replaces the full tag set.
type ExpensePatch struct {
	AmountCents *int64
	Category    *Category
	Note        *string
	OccurredAt  *time.Time
	Tags        *[]string
}

func (p ExpensePatch) Validate() error {
	if p.AmountCents != nil && *p.AmountCents == 0 {
		return ErrZeroAmount
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, string(*p.Category))
	}
	if p.OccurredAt != nil && p.OccurredAt.IsZero() {
		return ErrZeroDate
	}
	if p.Note != nil && len(*p.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.AmountCents == nil && p.Category == nil && p.Note == nil &&
		p.OccurredAt == nil && p.Tags == nil
}

// SettingsPatch is a partial update of the settings row. Budgets merges
// into the stored mapping key by key; nil means no budget changes.
type SettingsPatch struct {
	MonthlyIncomeCents *int64
	SavingsGoalCents   *int64
	Budgets            map[Category]int64
}

func (p SettingsPatch) Validate() error {
	if p.MonthlyIncomeCents != nil && *p.MonthlyIncomeCents < 0 {
		return fmt.Errorf("%w: monthly income", ErrNegativeAmount)
	}
	if p.SavingsGoalCents != nil && *p.SavingsGoalCents < 0 {
		return fmt.Errorf("%w: savings goal", ErrNegativeAmount)
	}
	for c, v := range p.Budgets {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
		}
		if v < 0 {
			return fmt.Errorf("%w: budget for %q", ErrNegativeAmount, string(c))
		}
	}
	return nil
}

// ExpenseFilter narrows ListExpenses. From is inclusive and To exclusive;
// a zero time leaves that bound open. Tags are normalized before matching.
type ExpenseFilter struct {
	From         time.Time
	To           time.Time
	Categories   []Category
	Tags         []string
	NoteContains string
	Offset       int
	Limit        int
}

// NormalizeTags trims, collapses internal whitespace, case-folds and
// deduplicates tag names, dropping empties and control characters. Order
// of first appearance is preserved, so resolving the result is
// deterministic.
func NormalizeTags(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.Map(func(r rune) rune {
			if r < 32 {
				return -1
			}
			return r
		}, v)
		name := strings.ToLower(strings.Join(strings.Fields(v), " "))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
