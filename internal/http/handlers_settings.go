package http

import (
	"encoding/json"
	"net/http"

	"moneypal/internal/core"
)

type tagJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tagJSON, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagJSON{ID: t.ID, Name: t.Name})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleTagByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/api/tags/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	if err := s.store.DeleteTag(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsJSON struct {
	MonthlyIncomeCents int64            `json:"monthly_income_cents"`
	SavingsGoalCents   int64            `json:"savings_goal_cents"`
	Budgets            map[string]int64 `json:"budgets"`
}

func toSettingsJSON(s core.Settings) settingsJSON {
	budgets := make(map[string]int64, len(s.Budgets))
	for c, v := range s.Budgets {
		budgets[string(c)] = v
	}
	return settingsJSON{
		MonthlyIncomeCents: s.MonthlyIncomeCents,
		SavingsGoalCents:   s.SavingsGoalCents,
		Budgets:            budgets,
	}
}

type updateSettingsRequest struct {
	MonthlyIncomeCents *int64           `json:"monthly_income_cents"`
	SavingsGoalCents   *int64           `json:"savings_goal_cents"`
	Budgets            map[string]int64 `json:"budgets"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.GetSettings(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSettingsJSON(settings))

	case http.MethodPatch, http.MethodPut:
		var req updateSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, r, "invalid JSON body")
			return
		}

		patch := core.SettingsPatch{
			MonthlyIncomeCents: req.MonthlyIncomeCents,
			SavingsGoalCents:   req.SavingsGoalCents,
		}
		if len(req.Budgets) > 0 {
			patch.Budgets = make(map[core.Category]int64, len(req.Budgets))
			for c, v := range req.Budgets {
				patch.Budgets[core.Category(c)] = v
			}
		}

		updated, err := s.store.UpdateSettings(r.Context(), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toSettingsJSON(updated))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodPut)
	}
}
