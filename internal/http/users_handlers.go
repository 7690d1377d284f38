package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"firo-access/internal/models"
)

// Users /api/users 与 /api/users/{id}[/groups[/{gid}]]
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users"), "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			users, err := h.users.ListUsers(r.Context())
			if err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list users: %v", err)))
				return
			}
			writeJSON(w, http.StatusOK, Ok(users))
		case http.MethodPost:
			var user models.User
			if err := readBodyJSON(r, maxBodyBytes, &user); err != nil {
				writeJSON(w, http.StatusOK, Fail("invalid request body"))
				return
			}
			if user.ID == "" {
				writeJSON(w, http.StatusOK, Fail("id is required"))
				return
			}
			if user.Status == "" {
				user.Status = models.StatusActive
			}
			if err := h.users.CreateUser(r.Context(), &user); err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to create user: %v", err)))
				return
			}
			h.audit.Record(r.Context(), "", user.ID, "User created")
			writeJSON(w, http.StatusOK, Ok(user))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(rest, "/")
	userID := parts[0]

	// /api/users/{id}/groups[/{gid}]
	if len(parts) >= 2 && parts[1] == "groups" {
		h.userGroups(w, r, userID, parts[2:])
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := h.users.GetUserByID(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get user: %v", err)))
			return
		}
		if user == nil {
			writeJSON(w, http.StatusOK, Fail("user not found"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(user))
	case http.MethodPut:
		var user models.User
		if err := readBodyJSON(r, maxBodyBytes, &user); err != nil {
			writeJSON(w, http.StatusOK, Fail("invalid request body"))
			return
		}
		user.ID = userID
		if err := h.users.UpdateUser(r.Context(), &user); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to update user: %v", err)))
			return
		}
		h.audit.Record(r.Context(), "", userID, "User updated")
		writeJSON(w, http.StatusOK, Ok(user))
	case http.MethodDelete:
		if err := h.users.DeleteUser(r.Context(), userID); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to delete user: %v", err)))
			return
		}
		h.audit.Record(r.Context(), "", userID, "User deleted")
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": userID}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) userGroups(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			GroupID string `json:"group_id"`
		}
		if err := readBodyJSON(r, maxBodyBytes, &body); err != nil || body.GroupID == "" {
			writeJSON(w, http.StatusOK, Fail("group_id is required"))
			return
		}
		if err := h.users.AddUserToGroup(r.Context(), userID, body.GroupID); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to add user to group: %v", err)))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"user_id": userID, "group_id": body.GroupID}))
	case http.MethodDelete:
		if len(rest) == 0 || rest[0] == "" {
			writeJSON(w, http.StatusOK, Fail("group id is required"))
			return
		}
		if err := h.users.RemoveUserFromGroup(r.Context(), userID, rest[0]); err != nil {
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to remove user from group: %v", err)))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"user_id": userID, "removed": rest[0]}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
