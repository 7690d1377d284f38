package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"firo-access/internal/models"
)

// Permissions /api/permissions 与 /api/permissions/{id}
func (h *Handler) Permissions(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/permissions"), "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			perms, err := h.perms.ListPermissions(r.Context(),
				r.URL.Query().Get("device_id"), r.URL.Query().Get("group_id"))
			if err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list permissions: %v", err)))
				return
			}
			writeJSON(w, http.StatusOK, Ok(perms))
		case http.MethodPost:
			var perm models.DoorPermission
			if err := readBodyJSON(r, maxBodyBytes, &perm); err != nil {
				writeJSON(w, http.StatusOK, Fail("invalid request body"))
				return
			}
			if perm.GroupID == "" || perm.DeviceID == "" {
				writeJSON(w, http.StatusOK, Fail("group_id and device_id are required"))
				return
			}
			if perm.PermissionType != models.PermissionAllow && perm.PermissionType != models.PermissionDeny {
				writeJSON(w, http.StatusOK, Fail("permission_type must be allow or deny"))
				return
			}
			if err := h.perms.SetPermission(r.Context(), &perm); err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to set permission: %v", err)))
				return
			}
			h.audit.Record(r.Context(), perm.DeviceID, perm.GroupID,
				fmt.Sprintf("Permission set: %s", perm.PermissionType))
			writeJSON(w, http.StatusOK, Ok(perm))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid permission id"))
		return
	}
	if err := h.perms.DeletePermission(r.Context(), id); err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to delete permission: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": id}))
}

// Schedules /api/schedules 与 /api/schedules/{id}
func (h *Handler) Schedules(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/schedules"), "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			schedules, err := h.schedules.ListSchedules(r.Context(), r.URL.Query().Get("door_id"))
			if err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list schedules: %v", err)))
				return
			}
			writeJSON(w, http.StatusOK, Ok(schedules))
		case http.MethodPost:
			var schedule models.DoorSchedule
			if err := readBodyJSON(r, maxBodyBytes, &schedule); err != nil {
				writeJSON(w, http.StatusOK, Fail("invalid request body"))
				return
			}
			if err := validateSchedule(&schedule); err != nil {
				writeJSON(w, http.StatusOK, Fail(err.Error()))
				return
			}
			if err := h.schedules.SaveSchedule(r.Context(), &schedule); err != nil {
				writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to save schedule: %v", err)))
				return
			}
			h.audit.Record(r.Context(), schedule.DoorID, "",
				fmt.Sprintf("Schedule saved: %s", schedule.ScheduleName))
			writeJSON(w, http.StatusOK, Ok(schedule))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid schedule id"))
		return
	}
	if err := h.schedules.DeleteSchedule(r.Context(), id); err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to delete schedule: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": id}))
}

// validateSchedule 排程入参校验
// 窗口必须落在同一天内，不支持跨夜
func validateSchedule(s *models.DoorSchedule) error {
	if s.DoorID == "" || s.ScheduleName == "" {
		return fmt.Errorf("door_id and schedule_name are required")
	}
	if !validClockTime(s.StartTimeUTC) || !validClockTime(s.EndTimeUTC) {
		return fmt.Errorf("start_time_utc and end_time_utc must be HH:MM")
	}
	if s.EndTimeUTC <= s.StartTimeUTC {
		return fmt.Errorf("end_time_utc must be later than start_time_utc on the same day")
	}
	if len(s.Weekdays) != 7 {
		return fmt.Errorf("weekdays must be a 7-character bitmask")
	}
	for _, c := range s.Weekdays {
		if c != '0' && c != '1' {
			return fmt.Errorf("weekdays bitmask may contain only 0 and 1")
		}
	}
	if s.AccessType == "" {
		s.AccessType = models.AccessTypeAllowAll
	}
	return nil
}

func validClockTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh := parseInt(s[:2], -1)
	mm := parseInt(s[3:], -1)
	return hh >= 0 && hh <= 23 && mm >= 0 && mm <= 59
}
