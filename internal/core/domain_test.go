package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Fatalf("category %q should be valid", c)
		}
	}
	for _, c := range []Category{"", "food", "FUN", "groceries"} {
		if c.Valid() {
			t.Fatalf("category %q should be invalid", c)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Amount:     Money{Cents: -2599},
		Category:   CategoryGroceries,
		Note:       "weekly shop",
		OccurredAt: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		e    Expense
		want error
	}{
		{"zero amount", Expense{Amount: Money{}, Category: CategoryFun, OccurredAt: good.OccurredAt}, ErrZeroAmount},
		{"unknown category", Expense{Amount: Money{Cents: 1}, Category: "food", OccurredAt: good.OccurredAt}, ErrUnknownCategory},
		{"zero date", Expense{Amount: Money{Cents: 1}, Category: CategoryFun}, ErrZeroDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.e.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%v should wrap ErrValidation", err)
			}
		})
	}

	long := good
	long.Note = string(make([]byte, 201))
	if !errors.Is(long.Validate(), ErrNoteTooLong) {
		t.Fatalf("expected note length error")
	}
}

func TestSettingsValidate(t *testing.T) {
	ok := Settings{
		MonthlyIncomeCents: 500000,
		SavingsGoalCents:   100000,
		Budgets:            map[Category]int64{CategoryFun: 20000, CategoryTravel: 0},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Settings{
		{MonthlyIncomeCents: -1},
		{SavingsGoalCents: -1},
		{Budgets: map[Category]int64{CategoryFun: -1}},
		{Budgets: map[Category]int64{"nope": 100}},
	}
	for i, s := range bads {
		if err := s.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"case fold and dedupe", []string{"Food", " food ", "FOOD"}, []string{"food"}},
		{"collapse whitespace", []string{"  week  end  trip "}, []string{"week end trip"}},
		{"drop empties", []string{"", "  ", "a"}, []string{"a"}},
		{"keep punctuation", []string{"coffee, beans"}, []string{"coffee, beans"}},
		{"strip control characters", []string{"a\x1fb", "c\x00d", "\x01"}, []string{"ab", "cd"}},
		{"first appearance order", []string{"b", "A", "B", "a"}, []string{"b", "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeTags(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWeekStartOf(t *testing.T) {
	// 2025-03-12 is a Wednesday.
	wed := time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

	monday := WeekStartMonday.StartOf(wed)
	if !monday.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monday policy: got %v", monday)
	}

	sunday := WeekStartSunday.StartOf(wed)
	if !sunday.Equal(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("sunday policy: got %v", sunday)
	}

	// A Monday truncates to itself under the Monday policy.
	mon := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := WeekStartMonday.StartOf(mon); !got.Equal(mon) {
		t.Fatalf("monday fixpoint: got %v", got)
	}
	// A Sunday truncates to itself under the Sunday policy.
	sun := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := WeekStartSunday.StartOf(sun); !got.Equal(sun) {
		t.Fatalf("sunday fixpoint: got %v", got)
	}
}

func TestParseWeekStart(t *testing.T) {
	if ws, ok := ParseWeekStart(""); !ok || ws != WeekStartMonday {
		t.Fatalf("empty should default to monday")
	}
	if ws, ok := ParseWeekStart("sunday"); !ok || ws != WeekStartSunday {
		t.Fatalf("sunday not recognized")
	}
	if _, ok := ParseWeekStart("saturday"); ok {
		t.Fatalf("saturday should be rejected")
	}
}
