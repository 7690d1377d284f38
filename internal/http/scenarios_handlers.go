package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"firo-access/internal/models"
)

// Scenarios /api/scenarios 与 /api/scenarios/{id}
func (h *Handler) Scenarios(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/scenarios"), "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			scenarios, err := h.scenarios.ListScenarios(r.Context())
			if err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list scenarios: %v", err)))
				return
			}
			writeJSON(w, http.StatusOK, Ok(scenarios))
		case http.MethodPost:
			var scenario models.Scenario
			if err := readBodyJSON(r, maxBodyBytes, &scenario); err != nil {
				writeJSON(w, http.StatusOK, Fail("invalid request body"))
				return
			}
			if err := validateScenario(&scenario); err != nil {
				writeJSON(w, http.StatusOK, Fail(err.Error()))
				return
			}
			if err := h.scenarios.CreateScenario(r.Context(), &scenario); err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to create scenario: %v", err)))
				return
			}
			h.audit.Record(r.Context(), "", "", fmt.Sprintf("Scenario created: %s", scenario.Name))
			writeJSON(w, http.StatusOK, Ok(scenario))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid scenario id"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		scenario, err := h.scenarios.GetScenario(r.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get scenario: %v", err)))
			return
		}
		if scenario == nil {
			writeJSON(w, http.StatusOK, Fail("scenario not found"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(scenario))
	case http.MethodPut:
		var scenario models.Scenario
		if err := readBodyJSON(r, maxBodyBytes, &scenario); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		scenario.ID = id
		if err := validateScenario(&scenario); err != nil {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		if err := h.scenarios.UpdateScenario(r.Context(), &scenario); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to update scenario: %v", err)))
			return
		}
		writeJSON(w, http.StatusOK, Ok(scenario))
	case http.MethodDelete:
		if err := h.scenarios.DeleteScenario(r.Context(), id); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to delete scenario: %v", err)))
			return
		}
		h.audit.Record(r.Context(), "", "", fmt.Sprintf("Scenario deleted: %d", id))
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": id}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func validateScenario(s *models.Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.TriggerType == "" {
		return fmt.Errorf("trigger_type is required")
	}
	if !models.ValidActionType(s.ActionType) {
		return fmt.Errorf("action_type must be one of webhook, open_door, send_notification")
	}
	if s.ActionValue == "" {
		return fmt.Errorf("action_value is required")
	}
	return nil
}
