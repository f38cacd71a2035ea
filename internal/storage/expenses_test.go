package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"moneypal/internal/core"
)

func TestCreateExpenseRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	occurred := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	created := mustCreate(t, repo, -2599, core.CategoryGroceries, "refund at the market", occurred, "Market", "refund")

	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	got, err := repo.GetExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != -2599 {
		t.Errorf("amount: got %d, want -2599", got.Amount.Cents)
	}
	if got.Category != core.CategoryGroceries {
		t.Errorf("category: got %q", got.Category)
	}
	if got.Note != "refund at the market" {
		t.Errorf("note: got %q", got.Note)
	}
	if !got.OccurredAt.Equal(occurred) {
		t.Errorf("occurred_at: got %v, want %v", got.OccurredAt, occurred)
	}
	if !reflect.DeepEqual(got.Tags, []string{"market", "refund"}) {
		t.Errorf("tags: got %v", got.Tags)
	}
}

func TestCreateExpenseRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	occurred := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		e    core.Expense
	}{
		{"zero amount", core.Expense{Category: core.CategoryMisc, OccurredAt: occurred}},
		{"unknown category", core.Expense{Amount: core.Money{Cents: 100}, Category: "gadgets", OccurredAt: occurred}},
		{"zero date", core.Expense{Amount: core.Money{Cents: 100}, Category: core.CategoryMisc}},
		{"note too long", core.Expense{Amount: core.Money{Cents: 100}, Category: core.CategoryMisc, OccurredAt: occurred, Note: strings.Repeat("x", 201)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := repo.CreateExpense(ctx, tc.e); !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	got, err := repo.ListExpenses(ctx, core.ExpenseFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("rejected writes must not persist, got %d rows", len(got))
	}
}

func TestUpdateExpensePartial(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := mustCreate(t, repo, 1200, core.CategoryFun, "cinema", time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC), "movies")

	amount := int64(1500)
	note := "cinema and popcorn"
	if err := repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{AmountCents: &amount, Note: &note}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 1500 || got.Note != "cinema and popcorn" {
		t.Fatalf("patched fields not applied: %+v", got)
	}
	// Untouched fields survive.
	if got.Category != core.CategoryFun || !reflect.DeepEqual(got.Tags, []string{"movies"}) {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestUpdateExpenseReplacesTags(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := mustCreate(t, repo, 900, core.CategoryMisc, "", time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC), "old", "stale")

	tags := []string{"Fresh", "fresh", "new"}
	if err := repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{Tags: &tags}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got.Tags, []string{"fresh", "new"}) {
		t.Fatalf("tags: got %v", got.Tags)
	}
}

func TestUpdateExpenseValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := mustCreate(t, repo, 900, core.CategoryMisc, "", time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC))

	zero := int64(0)
	if err := repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{AmountCents: &zero}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("zero amount patch: got %v", err)
	}

	bad := core.Category("gadgets")
	if err := repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{Category: &bad}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("unknown category patch: got %v", err)
	}

	amount := int64(100)
	if err := repo.UpdateExpense(ctx, 99999, core.ExpensePatch{AmountCents: &amount}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing expense patch: got %v", err)
	}
}

func TestListExpensesOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	a := mustCreate(t, repo, 100, core.CategoryMisc, "first", day)
	b := mustCreate(t, repo, 200, core.CategoryMisc, "same day, later insert", day)
	c := mustCreate(t, repo, 300, core.CategoryMisc, "newer day", day.AddDate(0, 0, 3))

	got, err := repo.ListExpenses(ctx, core.ExpenseFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Newest date first, id breaks ties within a day.
	want := []int64{c.ID, b.ID, a.ID}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got id %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestListExpensesFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	groceries := mustCreate(t, repo, 4500, core.CategoryGroceries, "weekly shop", jan, "food")
	travel := mustCreate(t, repo, 12000, core.CategoryTravel, "train to Rome", feb, "work", "trip")
	fun := mustCreate(t, repo, 2500, core.CategoryFun, "Concert tickets", mar, "music")

	cases := []struct {
		name   string
		filter core.ExpenseFilter
		want   []int64
	}{
		{"from inclusive", core.ExpenseFilter{From: feb}, []int64{fun.ID, travel.ID}},
		{"to exclusive", core.ExpenseFilter{To: feb}, []int64{groceries.ID}},
		{"range", core.ExpenseFilter{From: feb, To: mar}, []int64{travel.ID}},
		{"category", core.ExpenseFilter{Categories: []core.Category{core.CategoryTravel}}, []int64{travel.ID}},
		{"two categories", core.ExpenseFilter{Categories: []core.Category{core.CategoryTravel, core.CategoryFun}}, []int64{fun.ID, travel.ID}},
		{"tag", core.ExpenseFilter{Tags: []string{"trip"}}, []int64{travel.ID}},
		{"tag normalized", core.ExpenseFilter{Tags: []string{"  TRIP "}}, []int64{travel.ID}},
		{"note substring case-insensitive", core.ExpenseFilter{NoteContains: "concert"}, []int64{fun.ID}},
		{"no match", core.ExpenseFilter{NoteContains: "yacht"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.ListExpenses(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			ids := make([]int64, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("got ids %v, want %v", ids, tc.want)
			}
			for i := range tc.want {
				if ids[i] != tc.want[i] {
					t.Fatalf("got ids %v, want %v", ids, tc.want)
				}
			}
		})
	}
}

func TestListAndGetAgreeOnTagsWithCommas(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := mustCreate(t, repo, 700, core.CategoryMisc, "",
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "coffee, beans", "tea")

	got, err := repo.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	list, err := repo.ListExpenses(ctx, core.ExpenseFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 row, got %d", len(list))
	}
	if !reflect.DeepEqual(list[0].Tags, got.Tags) {
		t.Fatalf("listing mangled tag names: list %v, get %v", list[0].Tags, got.Tags)
	}
	if !reflect.DeepEqual(got.Tags, []string{"coffee, beans", "tea"}) {
		t.Fatalf("tags: got %v", got.Tags)
	}
}

func TestListExpensesPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustCreate(t, repo, int64(100+i), core.CategoryMisc, "",
			time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC))
	}

	page1, err := repo.ListExpenses(ctx, core.ExpenseFilter{Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	page2, err := repo.ListExpenses(ctx, core.ExpenseFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected 2+2 rows, got %d+%d", len(page1), len(page2))
	}
	if page1[1].ID == page2[0].ID {
		t.Fatalf("pages overlap at id %d", page2[0].ID)
	}

	empty, err := repo.ListExpenses(ctx, core.ExpenseFilter{Offset: 50})
	if err != nil {
		t.Fatalf("past end: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}
