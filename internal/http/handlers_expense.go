package http

import (
	"encoding/json"
	"net/http"
	"time"

	"moneypal/internal/core"
)

type expenseJSON struct {
	ID          int64     `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Note        string    `json:"note,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
	Tags        []string  `json:"tags"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return expenseJSON{
		ID:          e.ID,
		AmountCents: e.Amount.Cents,
		Category:    string(e.Category),
		Note:        e.Note,
		OccurredAt:  e.OccurredAt,
		CreatedAt:   e.CreatedAt,
		Tags:        tags,
	}
}

// createExpenseRequest accepts the amount either as minor units or as a
// decimal string ("12,50" and "12.50" both work).
type createExpenseRequest struct {
	Amount      string   `json:"amount"`
	AmountCents *int64   `json:"amount_cents"`
	Category    string   `json:"category"`
	Note        string   `json:"note"`
	OccurredAt  string   `json:"occurred_at"`
	Tags        []string `json:"tags"`
}

func (req createExpenseRequest) amountCents() (int64, error) {
	if req.AmountCents != nil {
		return *req.AmountCents, nil
	}
	return core.ParseDecimalToCents(req.Amount)
}

// parseOccurred accepts RFC 3339 timestamps and plain dates.
func parseOccurred(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listExpenses(w, r)
	case http.MethodPost:
		s.createExpense(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid JSON body")
		return
	}

	cents, err := req.amountCents()
	if err != nil {
		writeError(w, r, err)
		return
	}
	occurred, ok := parseOccurred(req.OccurredAt)
	if !ok {
		writeBadRequest(w, r, "occurred_at must be RFC 3339 or YYYY-MM-DD")
		return
	}

	created, err := s.store.CreateExpense(r.Context(), core.Expense{
		Amount:     core.Money{Cents: cents},
		Category:   core.Category(req.Category),
		Note:       req.Note,
		OccurredAt: occurred,
		Tags:       req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toExpenseJSON(created))
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeBadRequest(w, r, "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeBadRequest(w, r, "to must be YYYY-MM-DD")
		return
	}

	filter := core.ExpenseFilter{
		From:         from,
		To:           endExclusive(to),
		Tags:         r.URL.Query()["tag"],
		NoteContains: r.URL.Query().Get("q"),
		Offset:       parseIntParam(r, "offset", 0),
		Limit:        parseIntParam(r, "limit", 0),
	}
	for _, c := range r.URL.Query()["category"] {
		filter.Categories = append(filter.Categories, core.Category(c))
	}

	expenses, err := s.store.ListExpenses(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, r, http.StatusOK, out)
}

type updateExpenseRequest struct {
	Amount      *string   `json:"amount"`
	AmountCents *int64    `json:"amount_cents"`
	Category    *string   `json:"category"`
	Note        *string   `json:"note"`
	OccurredAt  *string   `json:"occurred_at"`
	Tags        *[]string `json:"tags"`
}

func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/api/expenses/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		e, err := s.store.GetExpense(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toExpenseJSON(e))

	case http.MethodPatch, http.MethodPut:
		var req updateExpenseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, r, "invalid JSON body")
			return
		}

		patch := core.ExpensePatch{
			AmountCents: req.AmountCents,
			Note:        req.Note,
			Tags:        req.Tags,
		}
		if req.AmountCents == nil && req.Amount != nil {
			cents, err := core.ParseDecimalToCents(*req.Amount)
			if err != nil {
				writeError(w, r, err)
				return
			}
			patch.AmountCents = &cents
		}
		if req.Category != nil {
			c := core.Category(*req.Category)
			patch.Category = &c
		}
		if req.OccurredAt != nil {
			occurred, ok := parseOccurred(*req.OccurredAt)
			if !ok {
				writeBadRequest(w, r, "occurred_at must be RFC 3339 or YYYY-MM-DD")
				return
			}
			patch.OccurredAt = &occurred
		}

		if err := s.store.UpdateExpense(r.Context(), id, patch); err != nil {
			writeError(w, r, err)
			return
		}
		e, err := s.store.GetExpense(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toExpenseJSON(e))

	case http.MethodDelete:
		if err := s.store.DeleteExpense(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}
