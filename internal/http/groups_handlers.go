package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"firo-access/internal/models"
)

// Groups /api/groups 与 /api/groups/{id}
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	groupID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/groups"), "/")

	if groupID == "" {
		switch r.Method {
		case http.MethodGet:
			groups, err := h.groups.ListGroups(r.Context())
			if err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list groups: %v", err)))
				return
			}
			writeJSON(w, http.StatusOK, Ok(groups))
		case http.MethodPost:
			var group models.Group
			if err := readBodyJSON(r, maxBodyBytes, &group); err != nil {
				writeJSON(w, http.StatusOK, Fail("invalid request body"))
				return
			}
			if group.ID == "" {
				writeJSON(w, http.StatusOK, Fail("id is required"))
				return
			}
			if group.Status == "" {
				group.Status = models.StatusActive
			}
			if err := h.groups.CreateGroup(r.Context(), &group); err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to create group: %v", err)))
				return
			}
			h.audit.Record(r.Context(), "", group.ID, "Group created")
			writeJSON(w, http.StatusOK, Ok(group))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		group, err := h.groups.GetGroupByID(r.Context(), groupID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get group: %v", err)))
			return
		}
		if group == nil {
			writeJSON(w, http.StatusOK, Fail("group not found"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(group))
	case http.MethodPut:
		var group models.Group
		if err := readBodyJSON(r, maxBodyBytes, &group); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		group.ID = groupID
		if err := h.groups.UpdateGroup(r.Context(), &group); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to update group: %v", err)))
			return
		}
		writeJSON(w, http.StatusOK, Ok(group))
	case http.MethodDelete:
		if err := h.groups.DeleteGroup(r.Context(), groupID); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to delete group: %v", err)))
			return
		}
		h.audit.Record(r.Context(), "", groupID, "Group deleted")
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": groupID}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
